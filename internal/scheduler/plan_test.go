package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hypexbt/hypexbt/internal/queue"
	"github.com/hypexbt/hypexbt/internal/tweets"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

func planConfig() PlanConfig {
	return PlanConfig{
		TweetsPerDayMin: 3,
		TweetsPerDayMax: 6,
		ActiveHourStart: 8,
		ActiveHourEnd:   22,
		MinGap:          30 * time.Minute,
		Distribution: map[string]int{
			tweets.SourceDailyStats:    10,
			tweets.SourceTradingSignal: 40,
			tweets.SourceFundamentals:  25,
			tweets.SourceNews:          25,
		},
	}
}

func TestBuildPlanRespectsWindowAndGap(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := planConfig()

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		plan := BuildPlan(day, cfg, rng)

		require.GreaterOrEqual(t, len(plan), cfg.TweetsPerDayMin)
		require.LessOrEqual(t, len(plan), cfg.TweetsPerDayMax)

		for i, slot := range plan {
			require.GreaterOrEqual(t, slot.At.Hour(), cfg.ActiveHourStart, "seed %d slot %d", seed, i)
			require.LessOrEqual(t, slot.At.Hour(), cfg.ActiveHourEnd, "seed %d slot %d", seed, i)
			require.NotEmpty(t, slot.Source)
			require.Contains(t, cfg.Distribution, slot.Source)
			if i > 0 {
				gap := slot.At.Sub(plan[i-1].At)
				require.GreaterOrEqual(t, gap, cfg.MinGap, "seed %d slot %d too close", seed, i)
			}
		}
	}
}

func TestBuildPlanDeterministicPerSeed(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := planConfig()

	a := BuildPlan(day, cfg, rand.New(rand.NewSource(7)))
	b := BuildPlan(day, cfg, rand.New(rand.NewSource(7)))
	require.Equal(t, a, b)
}

func TestBuildPlanEmptyCases(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(1))

	cfg := planConfig()
	cfg.TweetsPerDayMin, cfg.TweetsPerDayMax = 0, 0
	require.Empty(t, BuildPlan(day, cfg, rng))

	cfg = planConfig()
	cfg.ActiveHourStart, cfg.ActiveHourEnd = 12, 12
	// a single active hour still gives a valid, tiny window
	plan := BuildPlan(day, cfg, rng)
	for _, slot := range plan {
		require.Equal(t, 12, slot.At.Hour())
	}
}

func TestBuildPlanShrinksTightWindow(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := planConfig()
	cfg.TweetsPerDayMin, cfg.TweetsPerDayMax = 5, 5
	cfg.ActiveHourStart, cfg.ActiveHourEnd = 12, 12

	// five slots 30m apart can't fit in one active hour; the plan must shrink
	// rather than push slots past the window
	for seed := int64(0); seed < 20; seed++ {
		plan := BuildPlan(day, cfg, rand.New(rand.NewSource(seed)))
		require.NotEmpty(t, plan, "seed %d", seed)
		for i, slot := range plan {
			require.Equal(t, 12, slot.At.Hour(), "seed %d slot %d", seed, i)
			if i > 0 {
				require.GreaterOrEqual(t, slot.At.Sub(plan[i-1].At), cfg.MinGap, "seed %d slot %d", seed, i)
			}
		}
	}
}

func TestPickSourceFollowsWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	dist := map[string]int{"a": 90, "b": 10, "zero": 0}

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[pickSource(dist, rng)]++
	}
	require.Zero(t, counts["zero"])
	require.Greater(t, counts["a"], counts["b"])
	require.Greater(t, counts["b"], 0)
}

type stubGen struct {
	source string
	draft  *tweets.Draft
	err    error
	calls  int
}

func (g *stubGen) Source() string { return g.source }
func (g *stubGen) Generate(context.Context) (*tweets.Draft, error) {
	g.calls++
	return g.draft, g.err
}

func TestPumpEnqueuesDueSlots(t *testing.T) {
	store := queue.NewMemoryStore()
	defer store.Close()

	gen := &stubGen{
		source: tweets.SourceDailyStats,
		draft:  &tweets.Draft{Action: tweets.ActionTweet, Text: "daily recap", Source: tweets.SourceDailyStats},
	}
	svc := New(Config{Enabled: true}, store, []Generator{gen}, nil, nil, nil, logx.Nop())

	now := time.Now()
	svc.plan = []Slot{
		{At: now.Add(-time.Minute), Source: tweets.SourceDailyStats},
		{At: now.Add(time.Hour), Source: tweets.SourceDailyStats},
	}

	svc.pump(context.Background())

	require.Equal(t, 1, gen.calls)
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.PerTier[priorityPlanned])

	// due slot is marked done and not re-run
	svc.pump(context.Background())
	require.Equal(t, 1, gen.calls)
}

func TestPublishNothingToPostIsQuiet(t *testing.T) {
	store := queue.NewMemoryStore()
	defer store.Close()

	gen := &stubGen{source: tweets.SourceNews, err: tweets.ErrNothingToPost}
	svc := New(Config{}, store, nil, nil, nil, nil, logx.Nop())

	svc.publish(context.Background(), gen, priorityEvent)
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.Total)
}

// ctxGen records the context state each Generate call observed.
type ctxGen struct {
	source string

	mu       sync.Mutex
	lastErr  error
	observed bool
}

func (g *ctxGen) Source() string { return g.source }
func (g *ctxGen) Generate(ctx context.Context) (*tweets.Draft, error) {
	g.mu.Lock()
	g.lastErr = ctx.Err()
	g.observed = true
	g.mu.Unlock()
	return nil, tweets.ErrNothingToPost
}

func (g *ctxGen) last() (error, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr, g.observed
}

func TestTimezoneReloadKeepsRunContext(t *testing.T) {
	store := queue.NewMemoryStore()
	defer store.Close()

	gen := &ctxGen{source: tweets.SourceTradingSignal}
	cfg := Config{
		Enabled:             true,
		Timezone:            "UTC",
		SignalCheckInterval: 10 * time.Millisecond,
		TokenEventInterval:  time.Hour,
		PumpInterval:        time.Hour,
	}
	svc := New(cfg, store, nil, gen, nil, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	// timezone change tears cron down and re-registers every entry; the new
	// entries must still observe the original run context
	cfg.Timezone = "America/New_York"
	svc.Apply(cfg)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		if err, ok := gen.last(); ok && err != nil {
			require.ErrorIs(t, err, context.Canceled)
			return
		}
		select {
		case <-deadline:
			t.Fatal("re-registered cron entries never observed run-context cancellation")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPublishRetweetDraft(t *testing.T) {
	store := queue.NewMemoryStore()
	defer store.Close()

	gen := &stubGen{
		source: tweets.SourceNews,
		draft:  &tweets.Draft{Action: tweets.ActionRetweet, TweetID: "12345", Source: tweets.SourceNews},
	}
	svc := New(Config{}, store, nil, nil, nil, nil, logx.Nop())
	svc.publish(context.Background(), gen, priorityEvent)

	entries, err := store.Peek(context.Background(), priorityEvent, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "retweet", entries[0].JobType)
	require.Equal(t, "12345", entries[0].ParamString("tweet_id"))
}
