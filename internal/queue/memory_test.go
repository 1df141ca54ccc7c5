package queue

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreEnqueueAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id1, err := s.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "a"}), 1)
	require.NoError(t, err)
	id2, err := s.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "b"}), 3)
	require.NoError(t, err)

	assert.Equal(t, "1", id1)
	assert.Equal(t, "2", id2)
}

func TestMemoryStoreConcurrentProducersNeverReuseIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	ids := make(chan string, producers*perProducer)
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				id, err := s.Enqueue(ctx, NewPayload("tweet", nil), 2)
				assert.NoError(t, err)
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "job id %s issued twice", id)
		seen[id] = true
		n, err := strconv.Atoi(id)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 1)
		require.LessOrEqual(t, n, producers*perProducer)
	}
	assert.Len(t, seen, producers*perProducer)
}

func TestMemoryStoreFIFOWithinTier(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, content := range []string{"first", "second", "third"} {
		_, err := s.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": content}), 2)
		require.NoError(t, err)
	}

	for _, want := range []string{"first", "second", "third"} {
		p, err := s.DequeueBlocking(ctx, 2, 50*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, want, p.ParamString("content"))
	}
}

func TestMemoryStoreDequeueTimesOutEmpty(t *testing.T) {
	s := NewMemoryStore()
	start := time.Now()
	p, err := s.DequeueBlocking(context.Background(), 1, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestMemoryStorePeekDoesNotRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "next"}), 1)
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, NewPayload("tweet", map[string]any{"content": "later"}), 1)
	require.NoError(t, err)

	peeked, err := s.Peek(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, peeked, 2)
	assert.Equal(t, "next", peeked[0].ParamString("content"), "index 0 is next-served")

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.PerTier[1])
}

func TestMemoryStoreStatsAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for pr := 1; pr <= 4; pr++ {
		for i := 0; i < pr; i++ {
			_, err := s.Enqueue(ctx, NewPayload("tweet", nil), pr)
			require.NoError(t, err)
		}
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.Total)
	assert.Equal(t, int64(10), st.Issued)
	assert.Equal(t, int64(3), st.PerTier[3])

	removed, err := s.Clear(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	removed, err = s.Clear(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Total)
	assert.Equal(t, int64(10), st.Issued, "lifetime counter survives a purge")
}

func TestMemoryStoreClearRejectsBadPriority(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Clear(context.Background(), 9)
	require.Error(t, err)
}

func TestMemoryStoreRetryListReturnsOnlyDueEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	due := NewPayload("tweet", map[string]any{"content": "due"})
	due.RetryAfter = time.Now().Add(-time.Minute)
	require.NoError(t, s.PushRetry(ctx, due))

	future := NewPayload("tweet", map[string]any{"content": "future"})
	future.RetryAfter = time.Now().Add(time.Hour)
	require.NoError(t, s.PushRetry(ctx, future))

	got, err := s.PullDueRetries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "due", got[0].ParamString("content"))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Retry, "non-due entry stays in place")

	// a second pull finds nothing new
	got, err = s.PullDueRetries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreDeadLetterNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	old := NewPayload("tweet", map[string]any{"content": "old"})
	old.FinalError = "first failure"
	require.NoError(t, s.PushDeadLetter(ctx, old))

	recent := NewPayload("tweet", map[string]any{"content": "recent"})
	recent.FinalError = "second failure"
	require.NoError(t, s.PushDeadLetter(ctx, recent))

	got, err := s.PeekDeadLetter(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].ParamString("content"))
	assert.Equal(t, "second failure", got[0].FinalError)

	n, err := s.ClearDeadLetter(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
