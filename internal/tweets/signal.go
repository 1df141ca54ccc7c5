package tweets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hypexbt/hypexbt/internal/sources"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

// Signal categories from the 15m/1h EMA crossover combination.
const (
	signalStrongBullish  = "strong_bullish"
	signalStrongBearish  = "strong_bearish"
	signalMixedShortTerm = "mixed_short_term_bullish"
	signalMixedLongTerm  = "mixed_long_term_bullish"
	signalNeutral        = "neutral"
)

const (
	signalCooldown  = 12 * time.Hour
	signalScanLimit = 30
)

var signalTemplates = map[string][]string{
	signalStrongBullish: {
		"🚀 $%s is heating up! 🚀\n\nPrice: %s\nBoth the 15m and 1h EMAs just flipped bullish.\n\n#HyperLiquid #%s",
		"📈 Strong momentum on $%s\n\nPrice: %s\n15m ✅ bullish\n1h ✅ bullish\n\n#HyperLiquid #%s",
		"🔥 $%s showing strength across timeframes\n\nCurrent price: %s\nShort and long term EMAs both point up.\n\n#HyperLiquid #%s",
	},
	signalStrongBearish: {
		"🐻 $%s losing steam\n\nPrice: %s\nBoth the 15m and 1h EMAs have turned bearish.\n\n#HyperLiquid #%s",
		"📉 Caution on $%s\n\nPrice: %s\n15m ❌ bearish\n1h ❌ bearish\n\n#HyperLiquid #%s",
		"⚠️ Momentum fading for $%s\n\nCurrent price: %s\nShort and long term EMAs both point down.\n\n#HyperLiquid #%s",
	},
	signalMixedShortTerm: {
		"👀 $%s waking up on the short timeframe\n\nPrice: %s\n15m EMA flipped bullish while the 1h is still undecided.\n\n#HyperLiquid #%s",
		"⚡ Early move on $%s?\n\nPrice: %s\nShort-term momentum turned up, longer timeframe hasn't confirmed yet.\n\n#HyperLiquid #%s",
		"🔍 $%s short-term signal flip\n\nCurrent price: %s\n15m bullish, 1h not yet.\n\n#HyperLiquid #%s",
	},
	signalMixedLongTerm: {
		"🧭 $%s trend building on the 1h\n\nPrice: %s\nThe hourly EMA is bullish while the 15m cools off.\n\n#HyperLiquid #%s",
		"📊 $%s bigger picture looks up\n\nPrice: %s\n1h bullish, 15m taking a breather.\n\n#HyperLiquid #%s",
		"🕐 $%s hourly momentum intact\n\nCurrent price: %s\nLong timeframe bullish, short timeframe mixed.\n\n#HyperLiquid #%s",
	},
	signalNeutral: {
		"😴 $%s going sideways\n\nPrice: %s\nEMAs are flat on both the 15m and 1h. Waiting game.\n\n#HyperLiquid #%s",
		"⚖️ $%s in balance\n\nPrice: %s\nNo clear momentum on either timeframe right now.\n\n#HyperLiquid #%s",
		"🔄 $%s chopping around\n\nCurrent price: %s\n15m and 1h EMAs both neutral.\n\n#HyperLiquid #%s",
	},
}

// TradingSignal scans the coin universe for EMA crossover flips and tweets
// the first fresh one. A per-coin cooldown keeps it from narrating every
// wiggle of the same market.
type TradingSignal struct {
	hl  *sources.Hyperliquid
	log logx.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

func NewTradingSignal(hl *sources.Hyperliquid, log logx.Logger) *TradingSignal {
	return &TradingSignal{
		hl:       hl,
		log:      log,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (g *TradingSignal) Source() string { return SourceTradingSignal }

func (g *TradingSignal) Generate(ctx context.Context) (*Draft, error) {
	assets, err := g.hl.Universe(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("trading signal: %w", err)
	}
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.Name)
	}

	scanned := 0
	for _, coin := range orderCoins(names) {
		if scanned >= signalScanLimit {
			break
		}
		if !g.eligible(coin) {
			continue
		}
		scanned++

		sig, err := g.hl.MomentumSignals(ctx, coin)
		if err != nil {
			g.log.Warn("signal scan skipped coin", logx.String("coin", coin), logx.Err(err))
			continue
		}
		if !sig.Change15m && !sig.Change1h {
			continue
		}

		g.markSeen(coin)
		return &Draft{
			Action: ActionTweet,
			Text:   renderSignal(sig),
			Source: SourceTradingSignal,
		}, nil
	}
	return nil, ErrNothingToPost
}

func (g *TradingSignal) eligible(coin string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	at, ok := g.lastSeen[coin]
	return !ok || g.now().Sub(at) >= signalCooldown
}

func (g *TradingSignal) markSeen(coin string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSeen[coin] = g.now()
}

func renderSignal(sig *sources.Signals) string {
	kind := classifySignal(sig.Signal15m, sig.Signal1h)
	tmpl := pick(signalTemplates[kind])

	symbol := "HL-" + sig.Coin
	text := fmt.Sprintf(tmpl, symbol, FormatPrice(sig.Price), strings.ToUpper(sig.Coin))
	return text + Disclaimer
}

func classifySignal(s15, s1h int) string {
	switch {
	case s15 == 1 && s1h == 1:
		return signalStrongBullish
	case s15 == -1 && s1h == -1:
		return signalStrongBearish
	case s15 == 1:
		return signalMixedShortTerm
	case s1h == 1:
		return signalMixedLongTerm
	default:
		return signalNeutral
	}
}
