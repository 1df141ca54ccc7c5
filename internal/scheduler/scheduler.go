// Package scheduler drives the posting cadence: it plans a day of content,
// watches the market for events worth jumping the plan, and feeds everything
// into the priority queue for the worker to post.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hypexbt/hypexbt/internal/queue"
	"github.com/hypexbt/hypexbt/internal/queue/jobs"
	"github.com/hypexbt/hypexbt/internal/tweets"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

// Queue priorities by content urgency. Planned content is routine; market
// events and signal flips should post ahead of it.
const (
	priorityEvent   = 2
	priorityPlanned = 3
)

// Generator produces one tweet draft per call, or tweets.ErrNothingToPost.
type Generator interface {
	Source() string
	Generate(ctx context.Context) (*tweets.Draft, error)
}

type Config struct {
	Enabled  bool
	Timezone string

	Plan PlanConfig

	SignalCheckInterval time.Duration
	TokenEventInterval  time.Duration
	PumpInterval        time.Duration
}

func (c *Config) withDefaults() {
	if c.SignalCheckInterval <= 0 {
		c.SignalCheckInterval = 15 * time.Minute
	}
	if c.TokenEventInterval <= 0 {
		c.TokenEventInterval = 30 * time.Minute
	}
	if c.PumpInterval <= 0 {
		c.PumpInterval = time.Minute
	}
}

// Service owns the cron entries and the current day's plan.
type Service struct {
	store queue.Store
	log   logx.Logger

	mu     sync.Mutex
	cfg    Config
	parser cron.Parser
	c      *cron.Cron
	stopCh chan struct{}
	loc    *time.Location
	runCtx context.Context // set by Start; restarts re-register against it

	generators map[string]Generator // keyed by source tag
	signals    Generator
	launches   Generator
	grads      Generator

	pmu  sync.Mutex
	plan []Slot
	rng  *rand.Rand
}

// New wires the service. generators feed planned slots; signals, launches
// and graduations run on their own event cadence and may be nil.
func New(cfg Config, store queue.Store, generators []Generator, signals, launches, grads Generator, log logx.Logger) *Service {
	cfg.withDefaults()
	byName := make(map[string]Generator, len(generators))
	for _, g := range generators {
		byName[g.Source()] = g
	}
	return &Service{
		store:      store,
		log:        log,
		cfg:        cfg,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		generators: byName,
		signals:    signals,
		launches:   launches,
		grads:      grads,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. A timezone change restarts cron in the new
// location; interval changes take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg

	if s.stopCh == nil {
		return
	}
	if oldTZ != newTZ {
		s.restartLocked()
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return
	}
	s.stopCh = make(chan struct{})
	s.runCtx = ctx

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.registerLocked(ctx)
	s.c.Start()

	// Plan the rest of today immediately instead of waiting for tomorrow's
	// planning run.
	go s.planDay(ctx, time.Now().In(loc))

	s.log.Info("scheduler started", logx.String("tz", loc.String()))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.runCtx = nil
	if s.c != nil {
		select {
		case <-s.c.Stop().Done():
		case <-ctx.Done():
		}
		s.c = nil
	}
	s.log.Info("scheduler stopped")
}

func (s *Service) registerLocked(ctx context.Context) {
	add := func(name, spec string, fn func(context.Context)) {
		if _, err := s.c.AddFunc(spec, func() { fn(ctx) }); err != nil {
			s.log.Error("bad cron spec", logx.String("entry", name), logx.String("spec", spec), logx.Err(err))
		}
	}

	// Midnight clears yesterday's slots; the 00:05 run plans the new day.
	add("midnight-reset", "0 0 * * *", func(context.Context) { s.resetPlan() })
	add("daily-plan", "5 0 * * *", func(ctx context.Context) {
		s.planDay(ctx, time.Now().In(s.location()))
	})
	add("signal-check", every(s.cfg.SignalCheckInterval), s.checkSignals)
	add("token-events", every(s.cfg.TokenEventInterval), s.checkTokenEvents)
	add("pump", every(s.cfg.PumpInterval), s.pump)
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.registerLocked(ctx)
	s.c.Start()
	s.log.Info("scheduler restarted", logx.String("tz", loc.String()))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return time.Local
	}
	return s.loc
}

// planDay builds the slot plan for the given day, discarding slots already
// in the past so a mid-day restart doesn't dump the morning's backlog.
func (s *Service) planDay(_ context.Context, day time.Time) {
	s.mu.Lock()
	cfg := s.cfg.Plan
	s.mu.Unlock()

	s.pmu.Lock()
	defer s.pmu.Unlock()

	all := BuildPlan(day, cfg, s.rng)
	now := time.Now()
	s.plan = s.plan[:0]
	for _, slot := range all {
		if slot.At.After(now) {
			s.plan = append(s.plan, slot)
		}
	}
	s.log.Info("posting plan built",
		logx.Int("slots", len(s.plan)),
		logx.Time("day", day),
	)
}

func (s *Service) resetPlan() {
	s.pmu.Lock()
	s.plan = nil
	s.pmu.Unlock()
}

// Plan returns a copy of the remaining slots, for the status API.
func (s *Service) Plan() []Slot {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	out := make([]Slot, len(s.plan))
	copy(out, s.plan)
	return out
}

// pump enqueues every planned slot that has come due.
func (s *Service) pump(ctx context.Context) {
	now := time.Now()

	s.pmu.Lock()
	var due []Slot
	for i := range s.plan {
		if !s.plan[i].Done && !s.plan[i].At.After(now) {
			s.plan[i].Done = true
			due = append(due, s.plan[i])
		}
	}
	s.pmu.Unlock()

	for _, slot := range due {
		s.runSlot(ctx, slot)
	}
}

func (s *Service) runSlot(ctx context.Context, slot Slot) {
	gen, ok := s.generators[slot.Source]
	if !ok {
		s.log.Warn("no generator for planned source", logx.String("source", slot.Source))
		return
	}
	s.publish(ctx, gen, priorityPlanned)
}

// checkSignals runs the momentum scan and posts flips ahead of the plan.
func (s *Service) checkSignals(ctx context.Context) {
	if s.signals != nil {
		s.publish(ctx, s.signals, priorityEvent)
	}
}

// checkTokenEvents looks for fresh launches and graduations.
func (s *Service) checkTokenEvents(ctx context.Context) {
	if s.launches != nil {
		s.publish(ctx, s.launches, priorityEvent)
	}
	if s.grads != nil {
		s.publish(ctx, s.grads, priorityEvent)
	}
}

// publish runs a generator and enqueues its draft.
func (s *Service) publish(ctx context.Context, gen Generator, priority int) {
	draft, err := gen.Generate(ctx)
	if err != nil {
		if errors.Is(err, tweets.ErrNothingToPost) {
			return
		}
		s.log.Warn("content generation failed", logx.String("source", gen.Source()), logx.Err(err))
		return
	}

	var id string
	switch draft.Action {
	case tweets.ActionRetweet:
		id, err = jobs.EnqueueRetweet(ctx, s.store, draft.TweetID, priority)
	case tweets.ActionQuoteTweet:
		id, err = jobs.EnqueueQuoteTweet(ctx, s.store, draft.TweetID, draft.Text, priority)
	default:
		id, err = jobs.EnqueueTweet(ctx, s.store, draft.Text, draft.Source, priority)
	}
	if err != nil {
		s.log.Error("enqueue failed", logx.String("source", draft.Source), logx.Err(err))
		return
	}
	s.log.Info("content enqueued",
		logx.String("job_id", id),
		logx.String("source", draft.Source),
		logx.String("action", draft.Action),
		logx.Int("priority", priority),
	)
}
