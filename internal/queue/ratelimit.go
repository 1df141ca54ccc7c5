package queue

import (
	"sync"
	"time"
)

// Limit is the per-key posting budget: a daily cap, an hourly cap, and a
// minimum interval between executions. The three checks are conjunctive.
type Limit struct {
	PerDay      int
	PerHour     int
	MinInterval time.Duration
}

// DefaultLimit is the conservative fallback for keys with no explicit
// configuration.
func DefaultLimit() Limit {
	return Limit{PerDay: 10, PerHour: 1, MinInterval: time.Hour}
}

// LimitSnapshot is a read-only view of one key's throttle state.
type LimitSnapshot struct {
	DailyCount    int           `json:"daily_count"`
	HourlyCount   int           `json:"hourly_count"`
	MaxPerDay     int           `json:"max_per_day"`
	MaxPerHour    int           `json:"max_per_hour"`
	MinInterval   time.Duration `json:"min_interval"`
	LastExecution time.Time     `json:"last_execution,omitzero"`
}

type limitState struct {
	limit Limit

	dailyCount  int
	hourlyCount int

	lastExecution  time.Time
	lastDailyReset time.Time
	lastHourReset  time.Time
}

// RateLimiter tracks throttle state per rate-limit key.
//
// Counter resets are evaluated lazily on each check against the wall clock;
// there is no background timer. Only the single worker mutates the counters,
// but the mutex also lets the status endpoint snapshot safely.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]Limit
	states map[string]*limitState
	now    func() time.Time
}

// NewRateLimiter creates a limiter with explicit limits for known keys.
// Unknown keys get DefaultLimit on first reference.
func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	cp := make(map[string]Limit, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &RateLimiter{
		limits: cp,
		states: make(map[string]*limitState),
		now:    time.Now,
	}
}

// SetLimits replaces the configured limits (config reload). Existing
// counters for keys that keep their name are preserved.
func (r *RateLimiter) SetLimits(limits map[string]Limit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limits = make(map[string]Limit, len(limits))
	for k, v := range limits {
		r.limits[k] = v
		if st, ok := r.states[k]; ok {
			st.limit = v
		}
	}
}

func (r *RateLimiter) state(key string) *limitState {
	st, ok := r.states[key]
	if !ok {
		lim, known := r.limits[key]
		if !known {
			lim = DefaultLimit()
		}
		now := r.now()
		st = &limitState{limit: lim, lastDailyReset: now, lastHourReset: now}
		r.states[key] = st
	}
	return st
}

// maybeReset zeroes counters exactly once when the wall clock crosses a day
// or hour boundary relative to the last reset.
func (r *RateLimiter) maybeReset(st *limitState) {
	now := r.now()

	ny, nm, nd := now.Date()
	ly, lm, ld := st.lastDailyReset.Date()
	if ny != ly || nm != lm || nd != ld {
		st.dailyCount = 0
		st.lastDailyReset = now
	}

	if !now.Truncate(time.Hour).Equal(st.lastHourReset.Truncate(time.Hour)) {
		st.hourlyCount = 0
		st.lastHourReset = now
	}
}

// CanExecute reports whether a job under this key may run now.
func (r *RateLimiter) CanExecute(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(key)
	r.maybeReset(st)

	if st.limit.PerDay > 0 && st.dailyCount >= st.limit.PerDay {
		return false
	}
	if st.limit.PerHour > 0 && st.hourlyCount >= st.limit.PerHour {
		return false
	}
	if st.limit.MinInterval > 0 && !st.lastExecution.IsZero() &&
		r.now().Sub(st.lastExecution) < st.limit.MinInterval {
		return false
	}
	return true
}

// RecordExecution is called only after a confirmed successful execution.
func (r *RateLimiter) RecordExecution(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(key)
	r.maybeReset(st)
	st.dailyCount++
	st.hourlyCount++
	st.lastExecution = r.now()
}

// Snapshot returns the current counters for every key seen so far.
func (r *RateLimiter) Snapshot() map[string]LimitSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]LimitSnapshot, len(r.states))
	for key, st := range r.states {
		r.maybeReset(st)
		out[key] = LimitSnapshot{
			DailyCount:    st.dailyCount,
			HourlyCount:   st.hourlyCount,
			MaxPerDay:     st.limit.PerDay,
			MaxPerHour:    st.limit.PerHour,
			MinInterval:   st.limit.MinInterval,
			LastExecution: st.lastExecution,
		}
	}
	return out
}
