package tweets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hypexbt/hypexbt/internal/sources"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

const fundamentalsCooldown = 7 * 24 * time.Hour

var fundamentalsTemplates = []string{
	"💎 Token deep dive: $%s (%s)\n\nPrice: %s\nMarket Cap: %s\nFDV: %s\nCirculating: %s\n24h: %s\n\n#Crypto #%s",
	"🔍 $%s (%s) by the numbers\n\n💵 Price: %s\n🏦 Market Cap: %s\n🌐 FDV: %s\n🔄 Circulating Supply: %s\n📊 24h: %s\n\n#Crypto #%s",
	"📋 Fundamentals check on $%s (%s)\n\nPrice: %s\nMcap: %s\nFDV: %s\nSupply: %s\n24h move: %s\n\n#Crypto #%s",
	"🧮 Know what you hold: $%s (%s)\n\nCurrent price: %s\nMarket cap: %s\nFully diluted: %s\nCirculating: %s\n24h change: %s\n\n#Crypto #%s",
}

// Fundamentals tweets a market snapshot for one coin, rotating through the
// exchange universe with a week-long per-coin cooldown so the feed doesn't
// repeat itself.
type Fundamentals struct {
	cg  *sources.CoinGecko
	hl  *sources.Hyperliquid
	log logx.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

func NewFundamentals(cg *sources.CoinGecko, hl *sources.Hyperliquid, log logx.Logger) *Fundamentals {
	return &Fundamentals{
		cg:       cg,
		hl:       hl,
		log:      log,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (g *Fundamentals) Source() string { return SourceFundamentals }

func (g *Fundamentals) Generate(ctx context.Context) (*Draft, error) {
	assets, err := g.hl.Universe(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("fundamentals: %w", err)
	}
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.Name)
	}

	for _, coin := range orderCoins(names) {
		if !g.eligible(coin) {
			continue
		}

		f, err := g.cg.Fundamentals(ctx, coin)
		if err != nil {
			g.log.Debug("fundamentals lookup failed", logx.String("coin", coin), logx.Err(err))
			continue
		}

		g.markSeen(coin)
		text := fmt.Sprintf(pick(fundamentalsTemplates),
			f.Symbol, f.Name,
			FormatPrice(f.CurrentPrice),
			FormatUSD(f.MarketCap),
			FormatUSD(f.FDV),
			FormatAmount(f.CirculatingSupply),
			FormatChange(f.PriceChange24h),
			f.Symbol,
		)
		return &Draft{Action: ActionTweet, Text: text + Disclaimer, Source: SourceFundamentals}, nil
	}
	return nil, ErrNothingToPost
}

func (g *Fundamentals) eligible(coin string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	at, ok := g.lastSeen[coin]
	return !ok || g.now().Sub(at) >= fundamentalsCooldown
}

func (g *Fundamentals) markSeen(coin string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSeen[coin] = g.now()
}
