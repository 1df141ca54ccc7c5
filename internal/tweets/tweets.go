// Package tweets turns market data into ready-to-queue tweet drafts.
//
// Generators are pure-ish: they read from the source clients, keep a small
// dedup memory so the bot doesn't repeat itself, and return a Draft or
// ErrNothingToPost. Posting and rate limiting happen downstream in the
// queue worker.
package tweets

import (
	"errors"
	"math/rand"
)

// Draft actions, matching the queue's job types.
const (
	ActionTweet      = "tweet"
	ActionRetweet    = "retweet"
	ActionQuoteTweet = "quote_tweet"
)

// Generator source tags, also the keys of schedule.content_distribution.
const (
	SourceDailyStats    = "daily_stats"
	SourceTradingSignal = "trading_signal"
	SourceFundamentals  = "token_fundamentals"
	SourceLaunch        = "token_launch"
	SourceGraduation    = "token_graduation"
	SourceNews          = "hyperliquid_news"
)

// ErrNothingToPost means the generator found no fresh content this round.
// It is an expected outcome, not a failure.
var ErrNothingToPost = errors.New("nothing to post")

// Disclaimer is appended to anything that could read as trading advice.
const Disclaimer = "\n\n⚠️ Not financial advice. DYOR."

// Draft is generator output ready for the queue.
type Draft struct {
	Action  string
	Text    string
	TweetID string // referenced post for retweet/quote actions
	Source  string
}

// topCoins get first pick in coin-scanning generators.
var topCoins = []string{"BTC", "ETH", "SOL", "AVAX", "MATIC", "LINK", "DOGE", "SHIB", "UNI", "AAVE"}

func pick(options []string) string {
	return options[rand.Intn(len(options))]
}

// orderCoins puts the well-known names first, then the rest of the universe.
func orderCoins(universe []string) []string {
	known := make(map[string]bool, len(universe))
	for _, c := range universe {
		known[c] = true
	}
	out := make([]string, 0, len(universe))
	for _, c := range topCoins {
		if known[c] {
			out = append(out, c)
		}
	}
	inTop := make(map[string]bool, len(topCoins))
	for _, c := range topCoins {
		inTop[c] = true
	}
	for _, c := range universe {
		if !inTop[c] {
			out = append(out, c)
		}
	}
	return out
}
