package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same contract as RedisStore.
// It backs tests and dry runs where no Redis URL is configured.
//
// Entries are kept as encoded JSON so payloads take the exact same codec
// round-trip they would through Redis.
type MemoryStore struct {
	mu      sync.Mutex
	tiers   map[int][][]byte
	retry   [][]byte
	dead    [][]byte
	counter int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tiers: make(map[int][][]byte, MaxPriority)}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Enqueue(ctx context.Context, p *Payload, priority int) (string, error) {
	if !ValidPriority(priority) {
		return "", fmt.Errorf("priority %d out of range [%d, %d]", priority, MinPriority, MaxPriority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	cp := p.Clone()
	cp.JobID = strconv.FormatInt(s.counter, 10)
	cp.Priority = priority

	b, err := encodePayload(cp)
	if err != nil {
		return "", err
	}
	s.tiers[priority] = append(s.tiers[priority], b)

	p.JobID = cp.JobID
	p.Priority = priority
	return cp.JobID, nil
}

func (s *MemoryStore) DequeueBlocking(ctx context.Context, priority int, timeout time.Duration) (*Payload, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		if list := s.tiers[priority]; len(list) > 0 {
			b := list[0]
			s.tiers[priority] = list[1:]
			s.mu.Unlock()
			return decodePayload(b)
		}
		s.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *MemoryStore) Peek(ctx context.Context, priority, count int) ([]*Payload, error) {
	if count <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.tiers[priority]
	if count > len(list) {
		count = len(list)
	}
	out := make([]*Payload, 0, count)
	for _, b := range list[:count] {
		p, err := decodePayload(b)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{PerTier: make(map[int]int64, MaxPriority)}
	for pr := MinPriority; pr <= MaxPriority; pr++ {
		n := int64(len(s.tiers[pr]))
		st.PerTier[pr] = n
		st.Total += n
	}
	st.Retry = int64(len(s.retry))
	st.DeadLetter = int64(len(s.dead))
	st.Issued = s.counter
	return st, nil
}

func (s *MemoryStore) Clear(ctx context.Context, priority int) (int64, error) {
	tiers := []int{priority}
	if priority == 0 {
		tiers = []int{1, 2, 3, 4}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, pr := range tiers {
		if !ValidPriority(pr) {
			return removed, fmt.Errorf("priority %d out of range [%d, %d]", pr, MinPriority, MaxPriority)
		}
		removed += int64(len(s.tiers[pr]))
		s.tiers[pr] = nil
	}
	return removed, nil
}

func (s *MemoryStore) PushRetry(ctx context.Context, p *Payload) error {
	b, err := encodePayload(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.retry = append(s.retry, b)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PullDueRetries(ctx context.Context, max int) ([]*Payload, error) {
	if max <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	due := make([]*Payload, 0, max)
	keep := s.retry[:0:0]
	for _, b := range s.retry {
		p, err := decodePayload(b)
		if err != nil {
			s.dead = append(s.dead, b)
			continue
		}
		if len(due) < max && (p.RetryAfter.IsZero() || !p.RetryAfter.After(now)) {
			due = append(due, p)
			continue
		}
		keep = append(keep, b)
	}
	s.retry = keep
	return due, nil
}

func (s *MemoryStore) PushDeadLetter(ctx context.Context, p *Payload) error {
	b, err := encodePayload(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	// newest first, matching the Redis list layout
	s.dead = append([][]byte{b}, s.dead...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PeekDeadLetter(ctx context.Context, count int) ([]*Payload, error) {
	if count <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if count > len(s.dead) {
		count = len(s.dead)
	}
	out := make([]*Payload, 0, count)
	for _, b := range s.dead[:count] {
		p, err := decodePayload(b)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) ClearDeadLetter(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.dead))
	s.dead = nil
	return n, nil
}
