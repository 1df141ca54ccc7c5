package sources

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hypexbt/hypexbt/internal/twitter"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

const defaultLiquidLaunchAccount = "LiquidLaunchHL"

// TimelineReader is the slice of the posting client LiquidLaunch needs.
type TimelineReader interface {
	UserTimeline(ctx context.Context, username string, count int) ([]twitter.Tweet, error)
}

// TokenEvent is a token launch or graduation spotted on the LiquidLaunch
// account's timeline.
type TokenEvent struct {
	Symbol    string    `json:"token_symbol"`
	Name      string    `json:"token_name"`
	TweetID   string    `json:"tweet_id"`
	TweetText string    `json:"tweet_text"`
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type"` // "launch" or "graduation"
}

var (
	launchKeywords = []string{
		"launch", "listing", "new token", "now available", "just added", "trading now",
	}
	graduationKeywords = []string{
		"graduation", "graduated", "migrat", "moving to", "now on hyperliquid", "now trading on",
	}

	symbolRe = regexp.MustCompile(`\$([A-Za-z0-9]+)`)
)

// LiquidLaunch derives token events from the LiquidLaunch account's tweets.
// There is no structured API; keyword matching against the timeline is how
// the upstream project publishes these events.
type LiquidLaunch struct {
	timeline TimelineReader
	account  string
	ttl      time.Duration
	log      logx.Logger

	mu            sync.Mutex
	launches      []TokenEvent
	launchesAt    time.Time
	graduations   []TokenEvent
	graduationsAt time.Time
}

func NewLiquidLaunch(timeline TimelineReader, account string, ttl time.Duration, log logx.Logger) *LiquidLaunch {
	if account == "" {
		account = defaultLiquidLaunchAccount
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LiquidLaunch{timeline: timeline, account: account, ttl: ttl, log: log}
}

// Launches returns recent token launches, newest first.
func (l *LiquidLaunch) Launches(ctx context.Context, forceRefresh bool) ([]TokenEvent, error) {
	return l.events(ctx, forceRefresh, "launch", launchKeywords, &l.launches, &l.launchesAt)
}

// Graduations returns recent token graduations/migrations, newest first.
func (l *LiquidLaunch) Graduations(ctx context.Context, forceRefresh bool) ([]TokenEvent, error) {
	return l.events(ctx, forceRefresh, "graduation", graduationKeywords, &l.graduations, &l.graduationsAt)
}

// TokenInfo finds a symbol in either event list.
func (l *LiquidLaunch) TokenInfo(ctx context.Context, symbol string) (TokenEvent, bool) {
	launches, _ := l.Launches(ctx, false)
	for _, ev := range launches {
		if ev.Symbol == symbol {
			return ev, true
		}
	}
	graduations, _ := l.Graduations(ctx, false)
	for _, ev := range graduations {
		if ev.Symbol == symbol {
			return ev, true
		}
	}
	return TokenEvent{}, false
}

func (l *LiquidLaunch) events(ctx context.Context, forceRefresh bool, kind string, keywords []string, cache *[]TokenEvent, cachedAt *time.Time) ([]TokenEvent, error) {
	l.mu.Lock()
	if !forceRefresh && *cache != nil && time.Since(*cachedAt) < l.ttl {
		out := *cache
		l.mu.Unlock()
		return out, nil
	}
	l.mu.Unlock()

	tweets, err := l.timeline.UserTimeline(ctx, l.account, 50)
	if err != nil {
		l.mu.Lock()
		stale := *cache
		l.mu.Unlock()
		if stale != nil {
			l.log.Warn("timeline fetch failed; using cached token events",
				logx.String("kind", kind), logx.Err(err))
			return stale, nil
		}
		return nil, err
	}

	events := ParseTokenEvents(tweets, kind, keywords)

	l.mu.Lock()
	*cache = events
	*cachedAt = time.Now()
	l.mu.Unlock()

	l.log.Info("fetched token events",
		logx.String("kind", kind),
		logx.Int("count", len(events)),
		logx.String("account", l.account),
	)
	return events, nil
}

// ParseTokenEvents filters a timeline down to token events: a keyword hit
// plus a $SYMBOL mention. The token name is taken from a "Name ($SYM)"
// pattern when present, else the symbol stands in.
func ParseTokenEvents(tweets []twitter.Tweet, kind string, keywords []string) []TokenEvent {
	events := make([]TokenEvent, 0, 8)
	for _, tw := range tweets {
		lower := strings.ToLower(tw.Text)
		if !containsAny(lower, keywords) {
			continue
		}
		m := symbolRe.FindStringSubmatch(tw.Text)
		if m == nil {
			continue
		}
		symbol := strings.ToUpper(m[1])

		name := symbol
		nameRe, err := regexp.Compile(`([A-Za-z0-9\s]+)\s+\(\$` + regexp.QuoteMeta(m[1]) + `\)`)
		if err == nil {
			if nm := nameRe.FindStringSubmatch(tw.Text); nm != nil {
				name = strings.TrimSpace(nm[1])
			}
		}

		events = append(events, TokenEvent{
			Symbol:    symbol,
			Name:      name,
			TweetID:   tw.ID,
			TweetText: tw.Text,
			CreatedAt: tw.CreatedAt,
			Type:      kind,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
