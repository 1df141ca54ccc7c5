package tweets

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/hypexbt/hypexbt/internal/sources"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

var quoteTexts = []string{
	"This is worth a read 👇",
	"Big if true 👀",
	"Bullish for the ecosystem 🚀",
	"The builders keep building 🛠️",
	"Hyperliquid keeps shipping ⚡",
	"Don't sleep on this one.",
	"More good news for #HyperLiquid 📈",
	"Exactly the kind of update we like to see ✅",
	"Ecosystem growth in real time 🌱",
	"Worth keeping an eye on this 🔍",
}

// News amplifies posts from the followed Hyperliquid accounts. Roughly 70%
// of picks become plain retweets, the rest quote tweets with a short
// comment. Replies and posts with zero retweets are skipped.
type News struct {
	timeline sources.TimelineReader
	accounts []string
	log      logx.Logger

	mu        sync.Mutex
	amplified map[string]bool
}

func NewNews(timeline sources.TimelineReader, accounts []string, log logx.Logger) *News {
	return &News{
		timeline:  timeline,
		accounts:  accounts,
		log:       log,
		amplified: make(map[string]bool),
	}
}

func (g *News) Source() string { return SourceNews }

func (g *News) Generate(ctx context.Context) (*Draft, error) {
	if len(g.accounts) == 0 {
		return nil, ErrNothingToPost
	}

	// Start at a random account so one busy feed doesn't starve the rest.
	offset := rand.Intn(len(g.accounts))
	for i := range g.accounts {
		account := g.accounts[(offset+i)%len(g.accounts)]
		tweets, err := g.timeline.UserTimeline(ctx, account, 20)
		if err != nil {
			g.log.Warn("news timeline fetch failed", logx.String("account", account), logx.Err(err))
			continue
		}

		for _, tw := range tweets {
			if strings.HasPrefix(tw.Text, "@") || tw.PublicMetrics.RetweetCount == 0 {
				continue
			}
			if !g.claim(tw.ID) {
				continue
			}

			if rand.Float64() < 0.7 {
				return &Draft{Action: ActionRetweet, TweetID: tw.ID, Source: SourceNews}, nil
			}
			return &Draft{
				Action:  ActionQuoteTweet,
				Text:    pick(quoteTexts),
				TweetID: tw.ID,
				Source:  SourceNews,
			}, nil
		}
	}
	return nil, ErrNothingToPost
}

func (g *News) claim(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.amplified[id] {
		return false
	}
	g.amplified[id] = true
	return true
}
