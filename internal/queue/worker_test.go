package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

func newTestWorker(t *testing.T, store Store, reg *Registry, limiter *RateLimiter) *Worker {
	t.Helper()
	if limiter == nil {
		limiter = NewRateLimiter(map[string]Limit{
			"tweet": {PerDay: 100, PerHour: 100},
		})
	}
	clients := NewClients(logx.Nop(), func() (Poster, error) {
		return nil, errors.New("no poster in tests")
	})
	cfg := WorkerConfig{
		DequeueTimeout: 10 * time.Millisecond,
		IdleSleep:      10 * time.Millisecond,
		StoreBackoff:   10 * time.Millisecond,
	}
	return NewWorker(cfg, store, reg, limiter, clients, logx.Nop())
}

func TestWorkerProcessesSuccessfulJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry()

	executed := 0
	registerStub(reg, "tweet", nil, &stubJob{run: func(context.Context) (bool, error) {
		executed++
		return true, nil
	}})

	w := newTestWorker(t, store, reg, nil)

	id, err := store.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "hello"}), 1)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	worked, err := w.cycle(ctx)
	require.NoError(t, err)
	assert.True(t, worked)
	assert.Equal(t, 1, executed)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Total)

	ws := w.Stats()
	assert.Equal(t, uint64(1), ws.Processed)
	assert.Equal(t, uint64(1), ws.Succeeded)
	assert.Equal(t, 1, ws.RateLimits["tweet"].DailyCount)
}

func TestWorkerStrictPriorityOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry()

	var order []string
	reg.Register("tweet", Entry{New: func(p *Payload) Job {
		content := p.ParamString("content")
		return &stubJob{key: "tweet", run: func(context.Context) (bool, error) {
			order = append(order, content)
			return true, nil
		}}
	}})

	// the low-priority job is enqueued first, the urgent one second
	_, err := store.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "low"}), 4)
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "urgent"}), 1)
	require.NoError(t, err)

	w := newTestWorker(t, store, reg, nil)
	for i := 0; i < 2; i++ {
		worked, err := w.cycle(ctx)
		require.NoError(t, err)
		require.True(t, worked)
	}

	assert.Equal(t, []string{"urgent", "low"}, order)
}

func TestWorkerUnknownTypeGoesStraightToDeadLetter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	w := newTestWorker(t, store, NewRegistry(), nil)

	_, err := store.Enqueue(ctx, NewPayload("unknown", map[string]any{"content": "x"}), 1)
	require.NoError(t, err)

	worked, err := w.cycle(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	dead, err := store.PeekDeadLetter(ctx, 1)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].FinalError, "unknown job type")
	assert.False(t, dead[0].FailedAt.IsZero())

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Retry, "structural failures never reach the retry list")
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry()

	policy := RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}
	registerStub(reg, "tweet", nil, &stubJob{
		policy: policy,
		run: func(context.Context) (bool, error) {
			return false, &ExecutionError{JobType: "tweet", Err: errors.New("network down")}
		},
	})

	w := newTestWorker(t, store, reg, nil)

	_, err := store.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "x"}), 2)
	require.NoError(t, err)

	// first failure: within budget, lands in retry with a future retry_after
	worked, err := w.cycle(ctx)
	require.NoError(t, err)
	require.True(t, worked)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), st.Retry)

	// wait for the entry to come due, then fail again: budget exhausted
	time.Sleep(10 * time.Millisecond)
	worked, err = w.cycle(ctx)
	require.NoError(t, err)
	require.True(t, worked)

	dead, err := store.PeekDeadLetter(ctx, 1)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, policy.MaxRetries+1, dead[0].RetryCount)
	assert.Contains(t, dead[0].FinalError, "network down")

	st, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Retry)
}

func TestWorkerRateLimitedJobKeepsRetryBudget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry()
	registerStub(reg, "tweet", nil, &stubJob{run: func(context.Context) (bool, error) {
		t.Fatal("rate-limited job must not execute")
		return false, nil
	}})

	limiter := NewRateLimiter(map[string]Limit{"tweet": {PerDay: 1}})
	limiter.RecordExecution("tweet") // daily budget already spent

	w := newTestWorker(t, store, reg, limiter)

	_, err := store.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "x"}), 1)
	require.NoError(t, err)

	worked, err := w.cycle(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), st.Retry)

	// rescheduled, not penalized: retry_count is untouched
	due, err := store.PullDueRetries(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, due, "retry_after must be in the future")
}

func TestWorkerContainsPanics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry()
	registerStub(reg, "tweet", nil, &stubJob{
		policy: RetryPolicy{MaxRetries: 0},
		run: func(context.Context) (bool, error) {
			panic("boom")
		},
	})

	w := newTestWorker(t, store, reg, nil)

	_, err := store.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "x"}), 1)
	require.NoError(t, err)

	worked, err := w.cycle(ctx)
	require.NoError(t, err)
	assert.True(t, worked)

	dead, err := store.PeekDeadLetter(ctx, 1)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].FinalError, "panic")
}

func TestWorkerShutdownFinishesInFlightJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry()

	started := make(chan struct{})
	release := make(chan struct{})
	registerStub(reg, "tweet", nil, &stubJob{run: func(jobCtx context.Context) (bool, error) {
		close(started)
		<-release
		// the job context is detached from shutdown; a dispatched payload
		// must run to completion
		if jobCtx.Err() != nil {
			return false, &ExecutionError{JobType: "tweet", Err: jobCtx.Err()}
		}
		return true, nil
	}})

	w := newTestWorker(t, store, reg, nil)
	_, err := store.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "x"}), 1)
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	<-started

	stopped := make(chan error, 1)
	go func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopped <- w.Stop(stopCtx)
	}()
	// let the shutdown request land while Execute is blocked, then finish
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-stopped)

	ws := w.Stats()
	assert.Equal(t, uint64(1), ws.Processed)
	assert.Equal(t, uint64(1), ws.Succeeded, "in-flight job must complete, not fail on shutdown")

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total, "nothing requeued")
	assert.Zero(t, st.Retry)
	dead, err := store.PeekDeadLetter(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestWorkerStartStop(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry()
	registerStub(reg, "tweet", nil, &stubJob{})

	w := newTestWorker(t, store, reg, nil)

	require.NoError(t, w.Start(context.Background()))
	require.Error(t, w.Start(context.Background()), "second Start must fail")
	assert.True(t, w.Stats().Running)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.Stats().Running)

	// Stop is idempotent
	require.NoError(t, w.Stop(stopCtx))
}
