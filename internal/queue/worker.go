package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

// WorkerConfig tunes the polling loop. Zero values pick the defaults noted
// on each field.
type WorkerConfig struct {
	// DequeueTimeout bounds each tier's blocking pop; it only exists to keep
	// the loop responsive to shutdown. Default 1s.
	DequeueTimeout time.Duration
	// IdleSleep is the pause after a fully empty cycle. Default 30s.
	IdleSleep time.Duration
	// StoreBackoff is the pause after a store error. Default 60s.
	StoreBackoff time.Duration
	// RetryBatch caps how many due retries one idle cycle drains. Default 1.
	RetryBatch int
	// RateLimitRequeueDelay spaces out re-checks of rate-limited jobs.
	// Default 5m.
	RateLimitRequeueDelay time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = time.Second
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = 30 * time.Second
	}
	if c.StoreBackoff <= 0 {
		c.StoreBackoff = 60 * time.Second
	}
	if c.RetryBatch <= 0 {
		c.RetryBatch = 1
	}
	if c.RateLimitRequeueDelay <= 0 {
		c.RateLimitRequeueDelay = 5 * time.Minute
	}
	return c
}

// WorkerStats is the observability snapshot behind the status endpoint.
type WorkerStats struct {
	Running         bool                     `json:"running"`
	WorkerID        string                   `json:"worker_id"`
	RegisteredTypes []string                 `json:"registered_types"`
	Processed       uint64                   `json:"processed"`
	Succeeded       uint64                   `json:"succeeded"`
	Retried         uint64                   `json:"retried"`
	DeadLettered    uint64                   `json:"dead_lettered"`
	RateLimits      map[string]LimitSnapshot `json:"rate_limits"`
}

// Worker is the single consumer of the queue store.
//
// Each cycle it polls tiers 1..4 in strict order with short blocking pops,
// then drains due retries, then idles. All per-job errors are converted into
// retry or dead-letter routing; nothing a job does can crash the loop.
type Worker struct {
	cfg     WorkerConfig
	store   Store
	reg     *Registry
	limiter *RateLimiter
	clients *Clients
	log     logx.Logger

	id string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	processed    uint64
	succeeded    uint64
	retried      uint64
	deadLettered uint64
}

func NewWorker(cfg WorkerConfig, store Store, reg *Registry, limiter *RateLimiter, clients *Clients, log logx.Logger) *Worker {
	id := uuid.NewString()
	return &Worker{
		cfg:     cfg.withDefaults(),
		store:   store,
		reg:     reg,
		limiter: limiter,
		clients: clients,
		log:     log.With(logx.String("worker", id[:8])),
		id:      id,
	}
}

// Start launches the polling loop. Calling Start on a running worker is an
// error; the design is exactly one worker per process.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.run(runCtx)
	w.log.Info("worker started", logx.Any("job_types", w.reg.Types()))
	return nil
}

// Stop requests shutdown and waits for the loop to exit, bounded by ctx.
// An in-flight job always runs to completion first.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		w.log.Info("worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker stop: %w", ctx.Err())
	}
}

func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	st := WorkerStats{
		Running:      w.running,
		WorkerID:     w.id,
		Processed:    w.processed,
		Succeeded:    w.succeeded,
		Retried:      w.retried,
		DeadLettered: w.deadLettered,
	}
	w.mu.Unlock()

	st.RegisteredTypes = w.reg.Types()
	st.RateLimits = w.limiter.Snapshot()
	return st
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		close(w.done)
		w.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		worked, err := w.cycle(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			w.log.Error("queue store error; backing off", logx.Err(err), logx.Duration("backoff", w.cfg.StoreBackoff))
			w.sleep(ctx, w.cfg.StoreBackoff)
		case !worked:
			w.sleep(ctx, w.cfg.IdleSleep)
		}
	}
}

// cycle performs one poll pass: tiers in strict order, then due retries.
// It reports whether any payload was processed.
func (w *Worker) cycle(ctx context.Context) (bool, error) {
	// Pops run on a detached context so a shutdown mid-pop can never lose a
	// payload the store already handed us; the short timeout keeps the loop
	// responsive regardless.
	popCtx := context.WithoutCancel(ctx)

	for pr := MinPriority; pr <= MaxPriority; pr++ {
		p, err := w.store.DequeueBlocking(popCtx, pr, w.cfg.DequeueTimeout)
		if err != nil {
			return false, err
		}
		if p != nil {
			w.process(popCtx, p)
			return true, nil
		}
		if ctx.Err() != nil {
			return false, nil
		}
	}

	due, err := w.store.PullDueRetries(popCtx, w.cfg.RetryBatch)
	if err != nil {
		return false, err
	}
	for _, p := range due {
		w.process(popCtx, p)
	}
	return len(due) > 0, nil
}

// process routes one dequeued payload to completion: execute, retry, or
// dead-letter. It never returns an error; store failures during routing are
// logged (the payload content is included so nothing disappears silently).
func (w *Worker) process(ctx context.Context, p *Payload) {
	w.mu.Lock()
	w.processed++
	w.mu.Unlock()

	job, err := w.reg.CreateJob(p)
	if err != nil {
		// Structural failure: re-validating can never succeed, so the payload
		// goes straight to dead-letter.
		w.log.Warn("job rejected", logx.String("job_id", p.JobID), logx.String("job_type", p.JobType), logx.Err(err))
		w.deadLetter(ctx, p, err.Error())
		return
	}

	key := job.RateLimitKey()
	if !w.limiter.CanExecute(key) {
		// Transient: reschedule without consuming the retry budget.
		p.LastError = "rate limited: " + key
		p.RetryAfter = time.Now().Add(w.cfg.RateLimitRequeueDelay)
		w.log.Debug("job rate limited; rescheduled",
			logx.String("job_id", p.JobID),
			logx.String("key", key),
			logx.Time("retry_after", p.RetryAfter),
		)
		if err := w.store.PushRetry(ctx, p); err != nil {
			w.log.Error("push retry failed", logx.Err(err), logx.String("payload", p.String()))
		}
		return
	}

	ok, execErr := w.execute(ctx, job)
	if ok && execErr == nil {
		w.limiter.RecordExecution(key)
		w.mu.Lock()
		w.succeeded++
		w.mu.Unlock()
		w.log.Info("job completed", logx.String("job_id", p.JobID), logx.String("job_type", p.JobType))
		return
	}

	reason := "job reported failure"
	if execErr != nil {
		reason = execErr.Error()
	}

	p.RetryCount++
	policy := job.RetryPolicy()
	if p.RetryCount <= policy.MaxRetries {
		delay := backoffDelay(policy, p.RetryCount)
		p.LastError = reason
		p.RetryAfter = time.Now().Add(delay)
		w.mu.Lock()
		w.retried++
		w.mu.Unlock()
		w.log.Warn("job failed; scheduled retry",
			logx.String("job_id", p.JobID),
			logx.String("job_type", p.JobType),
			logx.Int("retry_count", p.RetryCount),
			logx.Duration("delay", delay),
			logx.String("reason", reason),
		)
		if err := w.store.PushRetry(ctx, p); err != nil {
			w.log.Error("push retry failed", logx.Err(err), logx.String("payload", p.String()))
		}
		return
	}

	w.log.Error("job exhausted retries",
		logx.String("job_id", p.JobID),
		logx.String("job_type", p.JobType),
		logx.Int("retry_count", p.RetryCount),
		logx.String("reason", reason),
	)
	w.deadLetter(ctx, p, reason)
}

// execute runs the job with panic containment. A panicking job is reported
// as an ExecutionError, never as a crashed worker.
func (w *Worker) execute(ctx context.Context, job Job) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &ExecutionError{Err: fmt.Errorf("panic: %v", r)}
			w.log.Error("job panicked",
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	return job.Execute(ctx, w.clients)
}

func (w *Worker) deadLetter(ctx context.Context, p *Payload, reason string) {
	p.FinalError = reason
	p.FailedAt = time.Now().UTC()
	w.mu.Lock()
	w.deadLettered++
	w.mu.Unlock()
	if err := w.store.PushDeadLetter(ctx, p); err != nil {
		w.log.Error("push dead-letter failed", logx.Err(err), logx.String("payload", p.String()))
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func backoffDelay(policy RetryPolicy, retry int) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = time.Minute
	}
	maxD := policy.MaxDelay
	if maxD <= 0 {
		maxD = 10 * time.Minute
	}
	mult := policy.Multiplier
	if mult < 1 {
		mult = 2
	}

	d := base
	for i := 1; i < retry; i++ {
		d = time.Duration(float64(d) * mult)
		if d > maxD {
			d = maxD
			break
		}
	}
	if d > maxD {
		d = maxD
	}
	return d
}
