package queue

import (
	"context"
	"fmt"
	"time"
)

// Priority tiers. 1 is urgent, 4 is low; the worker drains them in order.
const (
	MinPriority = 1
	MaxPriority = 4
)

// Store key names. These are the wire contract with the backing store and
// with any external tooling inspecting the lists.
const (
	retryListKey      = "jobs_retry"
	deadLetterListKey = "jobs_dead_letter"
	counterKey        = "job_counter"
)

func priorityListKey(priority int) string {
	return fmt.Sprintf("jobs_priority_%d", priority)
}

// ValidPriority reports whether p is one of the four queue tiers.
// Producers must reject out-of-range priorities before enqueueing.
func ValidPriority(p int) bool { return p >= MinPriority && p <= MaxPriority }

// Stats is a point-in-time view of the store.
type Stats struct {
	PerTier    map[int]int64 `json:"per_tier"`
	Total      int64         `json:"total"`
	Retry      int64         `json:"retry"`
	DeadLetter int64         `json:"dead_letter"`
	// Issued is the lifetime count of job IDs handed out.
	Issued int64 `json:"issued"`
}

// Store is the durable queue backend.
//
// Both implementations (Redis, in-memory) keep the same contract:
//   - Enqueue assigns a fresh monotonic job ID and stamps the priority onto
//     the payload before persisting; IDs are never reused.
//   - Lists are FIFO within a tier.
//   - The retry list is unordered; PullDueRetries removes and returns due
//     entries and leaves the rest in place.
//   - The dead-letter list is append-only until explicitly cleared.
//
// Store errors wrap ErrStoreUnavailable so the worker can tell connectivity
// problems apart from per-job failures.
type Store interface {
	Enqueue(ctx context.Context, p *Payload, priority int) (string, error)

	// DequeueBlocking pops the oldest entry from one tier, waiting up to
	// timeout. Returns (nil, nil) when the tier stayed empty.
	DequeueBlocking(ctx context.Context, priority int, timeout time.Duration) (*Payload, error)

	// Peek returns up to count entries from the front of a tier (the next
	// ones to be served) without removing them.
	Peek(ctx context.Context, priority, count int) ([]*Payload, error)

	Stats(ctx context.Context) (Stats, error)

	// Clear purges one tier, or every tier when priority is 0.
	// Returns the number of removed entries.
	Clear(ctx context.Context, priority int) (int64, error)

	PushRetry(ctx context.Context, p *Payload) error
	PullDueRetries(ctx context.Context, max int) ([]*Payload, error)

	PushDeadLetter(ctx context.Context, p *Payload) error
	PeekDeadLetter(ctx context.Context, count int) ([]*Payload, error)
	ClearDeadLetter(ctx context.Context) (int64, error)

	Close() error
}
