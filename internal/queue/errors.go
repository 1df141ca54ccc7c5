package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownJobType means the payload's job_type has no registry entry.
	// Structural: the payload goes straight to dead-letter, never to retry.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidParameters means the payload failed its type-specific
	// validation. Structural, same routing as ErrUnknownJobType.
	ErrInvalidParameters = errors.New("invalid job parameters")

	// ErrStoreUnavailable wraps store connectivity failures. The worker
	// treats it as a whole-loop backoff condition, not a per-job failure.
	ErrStoreUnavailable = errors.New("queue store unavailable")

	// ErrRejected marks an expected business rejection from the posting
	// platform (duplicate content, policy block, ...). Jobs report it as a
	// plain failed attempt rather than an ExecutionError.
	ErrRejected = errors.New("rejected by platform")
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// ExecutionError reports an unexpected condition inside a job's Execute.
// The worker treats it exactly like a false success signal, keeping the
// error text for the payload's last_error/final_error fields.
type ExecutionError struct {
	JobType string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.JobType == "" {
		return fmt.Sprintf("job execution: %v", e.Err)
	}
	return fmt.Sprintf("job %s execution: %v", e.JobType, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
