package tweets

import "fmt"

// FormatUSD renders a dollar amount in the B/M/K style used across the
// stat tweets.
func FormatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	default:
		return fmt.Sprintf("$%.1fK", v/1e3)
	}
}

// FormatAmount is FormatUSD without the currency sign, for token supplies.
func FormatAmount(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	default:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
}

// FormatPrice picks decimal places by magnitude so sub-dollar coins keep
// their significant digits while majors stay readable.
func FormatPrice(v float64) string {
	switch {
	case v < 0.1:
		return fmt.Sprintf("$%.4f", v)
	case v < 1:
		return fmt.Sprintf("$%.3f", v)
	case v < 10:
		return fmt.Sprintf("$%.2f", v)
	default:
		return fmt.Sprintf("$%.1f", v)
	}
}

// FormatChange renders a percentage move with an explicit sign.
func FormatChange(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}
