package tweets

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hypexbt/hypexbt/internal/sources"
	"github.com/hypexbt/hypexbt/internal/twitter"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

type fakeTimeline struct {
	tweets []twitter.Tweet
	err    error
}

func (f *fakeTimeline) UserTimeline(_ context.Context, _ string, _ int) ([]twitter.Tweet, error) {
	return f.tweets, f.err
}

func TestClassifySignal(t *testing.T) {
	cases := []struct {
		s15, s1h int
		want     string
	}{
		{1, 1, signalStrongBullish},
		{-1, -1, signalStrongBearish},
		{1, -1, signalMixedShortTerm},
		{1, 0, signalMixedShortTerm},
		{-1, 1, signalMixedLongTerm},
		{0, 1, signalMixedLongTerm},
		{0, 0, signalNeutral},
		{-1, 0, signalNeutral},
	}
	for _, tc := range cases {
		if got := classifySignal(tc.s15, tc.s1h); got != tc.want {
			t.Errorf("classifySignal(%d, %d) = %q, want %q", tc.s15, tc.s1h, got, tc.want)
		}
	}
}

func TestRenderSignalCarriesDisclaimer(t *testing.T) {
	sig := &sources.Signals{Coin: "SOL", Price: 142.7, Signal15m: 1, Signal1h: 1}
	text := renderSignal(sig)

	if !strings.HasSuffix(text, Disclaimer) {
		t.Fatalf("signal tweet missing disclaimer: %q", text)
	}
	if !strings.Contains(text, "$HL-SOL") {
		t.Errorf("signal tweet missing exchange symbol: %q", text)
	}
	if !strings.Contains(text, "$142.7") {
		t.Errorf("signal tweet missing price: %q", text)
	}
	if strings.Contains(text, "%!") {
		t.Errorf("template/arg mismatch: %q", text)
	}
}

func TestRenderSignalAllTemplatesWellFormed(t *testing.T) {
	sig := &sources.Signals{Coin: "BTC", Price: 65000}
	for kind, templates := range signalTemplates {
		for range templates {
			sig.Signal15m, sig.Signal1h = signalValuesFor(kind)
			if text := renderSignal(sig); strings.Contains(text, "%!") {
				t.Errorf("%s template renders badly: %q", kind, text)
			}
		}
	}
}

func signalValuesFor(kind string) (int, int) {
	switch kind {
	case signalStrongBullish:
		return 1, 1
	case signalStrongBearish:
		return -1, -1
	case signalMixedShortTerm:
		return 1, 0
	case signalMixedLongTerm:
		return 0, 1
	default:
		return 0, 0
	}
}

func TestMoversBlock(t *testing.T) {
	movers := []sources.CoinStat{
		{Coin: "SOL", ChangePct: 12.3},
		{Coin: "AVAX", ChangePct: 8.1},
		{Coin: "LINK", ChangePct: 5.0},
		{Coin: "UNI", ChangePct: 2.2},
	}
	block := moversBlock("📈 Top gainers:", movers)

	if !strings.Contains(block, "1. $SOL: +12.3%") {
		t.Errorf("missing first mover: %q", block)
	}
	if !strings.Contains(block, "3. $LINK: +5.0%") {
		t.Errorf("missing third mover: %q", block)
	}
	if strings.Contains(block, "UNI") {
		t.Errorf("block must stop at three movers: %q", block)
	}
	if moversBlock("📉 Top losers:", nil) != "" {
		t.Errorf("empty movers must render nothing")
	}
}

func TestRenderEventTemplates(t *testing.T) {
	for _, tmpl := range launchTemplates {
		text := renderEvent(tmpl, "Mega Coin", "MEGA")
		if strings.Contains(text, "%!") {
			t.Errorf("launch template renders badly: %q", text)
		}
		if !strings.Contains(text, "$MEGA") {
			t.Errorf("launch tweet missing symbol: %q", text)
		}
	}
	for _, tmpl := range graduationTemplates {
		text := renderEvent(tmpl, "", "ALPHA")
		if strings.Contains(text, "%!") {
			t.Errorf("graduation template renders badly: %q", text)
		}
		if !strings.Contains(text, "$ALPHA") {
			t.Errorf("graduation tweet missing symbol: %q", text)
		}
	}
}

func TestTokenLaunchAnnouncesOnce(t *testing.T) {
	timeline := &fakeTimeline{tweets: []twitter.Tweet{
		{ID: "10", Text: "New token launch! Mega Coin ($MEGA) is now available", CreatedAt: time.Now()},
	}}
	ll := sources.NewLiquidLaunch(timeline, "", time.Hour, logx.Nop())
	gen := NewTokenLaunch(ll)

	draft, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if draft.Action != ActionTweet || !strings.Contains(draft.Text, "$MEGA") {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if draft.Source != SourceLaunch {
		t.Errorf("source = %q", draft.Source)
	}

	if _, err := gen.Generate(context.Background()); !errors.Is(err, ErrNothingToPost) {
		t.Fatalf("second generate must dedup, got %v", err)
	}
}

func TestTokenGraduationAnnouncesOnce(t *testing.T) {
	timeline := &fakeTimeline{tweets: []twitter.Tweet{
		{ID: "20", Text: "$ALPHA has graduated and is now trading on Hyperliquid!", CreatedAt: time.Now()},
	}}
	ll := sources.NewLiquidLaunch(timeline, "", time.Hour, logx.Nop())
	gen := NewTokenGraduation(ll)

	draft, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if !strings.Contains(draft.Text, "$ALPHA") {
		t.Fatalf("unexpected draft: %+v", draft)
	}

	if _, err := gen.Generate(context.Background()); !errors.Is(err, ErrNothingToPost) {
		t.Fatalf("second generate must dedup, got %v", err)
	}
}

func TestNewsSkipsRepliesAndDeadPosts(t *testing.T) {
	timeline := &fakeTimeline{tweets: []twitter.Tweet{
		{ID: "1", Text: "@someone replying here"},
		{ID: "2", Text: "nobody retweeted this"},
		{ID: "3", Text: "Big protocol upgrade shipped"},
	}}
	timeline.tweets[2].PublicMetrics.RetweetCount = 5

	gen := NewNews(timeline, []string{"HyperliquidX"}, logx.Nop())
	draft, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if draft.TweetID != "3" {
		t.Fatalf("picked tweet %q, want 3", draft.TweetID)
	}
	if draft.Action != ActionRetweet && draft.Action != ActionQuoteTweet {
		t.Fatalf("unexpected action %q", draft.Action)
	}
	if draft.Action == ActionQuoteTweet && draft.Text == "" {
		t.Fatalf("quote tweets need a comment")
	}

	// Every eligible post is claimed exactly once.
	if _, err := gen.Generate(context.Background()); !errors.Is(err, ErrNothingToPost) {
		t.Fatalf("second generate must dedup, got %v", err)
	}
}

func TestNewsNoAccounts(t *testing.T) {
	gen := NewNews(&fakeTimeline{}, nil, logx.Nop())
	if _, err := gen.Generate(context.Background()); !errors.Is(err, ErrNothingToPost) {
		t.Fatalf("got %v, want ErrNothingToPost", err)
	}
}
