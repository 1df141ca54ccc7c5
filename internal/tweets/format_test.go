package tweets

import "testing"

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{2_450_000_000, "$2.5B"},
		{1_000_000_000, "$1.0B"},
		{315_000_000, "$315.0M"},
		{1_500_000, "$1.5M"},
		{950_000, "$950.0K"},
		{1_200, "$1.2K"},
		{0, "$0.0K"},
	}
	for _, tc := range cases {
		if got := FormatUSD(tc.in); got != tc.want {
			t.Errorf("FormatUSD(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.01234, "$0.0123"},
		{0.4567, "$0.457"},
		{3.14159, "$3.14"},
		{42.195, "$42.2"},
		{65000, "$65000.0"},
	}
	for _, tc := range cases {
		if got := FormatPrice(tc.in); got != tc.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatChange(t *testing.T) {
	if got := FormatChange(5.25); got != "+5.2%" {
		t.Errorf("positive: got %q", got)
	}
	if got := FormatChange(-3.0); got != "-3.0%" {
		t.Errorf("negative: got %q", got)
	}
	if got := FormatChange(0); got != "+0.0%" {
		t.Errorf("zero: got %q", got)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(19_700_000); got != "19.7M" {
		t.Errorf("got %q, want 19.7M", got)
	}
}
