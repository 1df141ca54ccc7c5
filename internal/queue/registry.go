package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Job is one executable unit resolved from a queue payload.
//
// Execute returns a success signal. Expected business failures (the platform
// rejects the content, nothing eligible to post, ...) must come back as
// (false, nil) or a wrapped ErrRejected; an *ExecutionError marks unexpected
// conditions and is treated by the worker exactly like a false return.
type Job interface {
	Execute(ctx context.Context, clients *Clients) (bool, error)

	// RateLimitKey selects the throttle state for this kind of job.
	RateLimitKey() string

	RetryPolicy() RetryPolicy
}

// RetryPolicy bounds retry attempts and shapes their backoff.
type RetryPolicy struct {
	// MaxRetries is the retry budget. A job that has failed MaxRetries+1
	// times in total lands in dead-letter.
	MaxRetries int

	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// DefaultRetryPolicy matches the platform-posting defaults: one retry,
// a minute out, doubling up to ten minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  time.Minute,
		Multiplier: 2,
		MaxDelay:   10 * time.Minute,
	}
}

// Entry wires one job type into the registry.
type Entry struct {
	// Validate rejects structurally bad payloads. A non-nil error is
	// wrapped in ErrInvalidParameters and the payload goes to dead-letter.
	Validate func(p *Payload) error

	// New builds the executable job from a validated payload.
	New func(p *Payload) Job
}

// Registry maps job_type tags to their validator/constructor pairs.
// Job kinds are wired at process start-up; the worker never changes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds or overwrites the entry for jobType.
func (r *Registry) Register(jobType string, e Entry) {
	if e.New == nil {
		panic(fmt.Sprintf("queue: registering job type %q without a constructor", jobType))
	}
	r.mu.Lock()
	r.entries[jobType] = e
	r.mu.Unlock()
}

// Types returns the registered job types, sorted for stable output.
func (r *Registry) Types() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// CreateJob resolves a payload into an executable job.
// Both failure modes are structural and non-retryable.
func (r *Registry) CreateJob(p *Payload) (Job, error) {
	r.mu.RLock()
	e, ok := r.entries[p.JobType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, p.JobType)
	}
	if e.Validate != nil {
		if err := e.Validate(p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParameters, p.JobType, err)
		}
	}
	return e.New(p), nil
}
