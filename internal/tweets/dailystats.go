package tweets

import (
	"context"
	"fmt"
	"strings"

	"github.com/hypexbt/hypexbt/internal/sources"
)

var dailyStatsTemplates = []string{
	"📊 Daily @HyperliquidExch Stats 📊\n\n24h Volume: %s\nOpen Interest: %s\n\n%s\n%s\n#HyperLiquid #DailyStats",
	"🔥 Another day on @HyperliquidExch 🔥\n\n💰 24h Volume: %s\n📈 Open Interest: %s\n\n%s\n%s\n#HyperLiquid #Trading",
	"⚡ @HyperliquidExch daily recap ⚡\n\nVolume (24h): %s\nOpen Interest: %s\n\n%s\n%s\n#HyperLiquid #Crypto",
	"📈 Market pulse on @HyperliquidExch\n\n24h Volume: %s\nOI: %s\n\n%s\n%s\n#HyperLiquid #DeFi",
}

// DailyStats generates the once-a-day exchange recap tweet.
type DailyStats struct {
	hl *sources.Hyperliquid
}

func NewDailyStats(hl *sources.Hyperliquid) *DailyStats {
	return &DailyStats{hl: hl}
}

func (g *DailyStats) Source() string { return SourceDailyStats }

func (g *DailyStats) Generate(ctx context.Context) (*Draft, error) {
	stats, err := g.hl.DailyStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	if stats.TotalVolume24h == 0 && len(stats.TopGainers) == 0 && len(stats.TopLosers) == 0 {
		return nil, ErrNothingToPost
	}

	text := fmt.Sprintf(pick(dailyStatsTemplates),
		FormatUSD(stats.TotalVolume24h),
		FormatUSD(stats.TotalOpenInterest),
		moversBlock("📈 Top gainers:", stats.TopGainers),
		moversBlock("📉 Top losers:", stats.TopLosers),
	)
	return &Draft{Action: ActionTweet, Text: text, Source: SourceDailyStats}, nil
}

// moversBlock renders up to three movers as a numbered list.
func moversBlock(header string, movers []sources.CoinStat) string {
	if len(movers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for i, m := range movers {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "%d. $%s: %s\n", i+1, m.Coin, FormatChange(m.ChangePct))
	}
	return b.String()
}
