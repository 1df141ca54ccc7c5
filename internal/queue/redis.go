package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

// RedisStore keeps the queue in Redis lists.
//
// Enqueue is LPUSH and DequeueBlocking is BRPOP, so the oldest entry of a
// tier sits at the tail of its list.
type RedisStore struct {
	rdb *redis.Client
	log logx.Logger
}

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond
)

// ConnectRedis dials the store from a redis:// URL and verifies it with a
// ping, retrying a few times so a briefly restarting Redis doesn't fail
// process start-up.
func ConnectRedis(ctx context.Context, url string, timeout time.Duration, log logx.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if timeout > 0 {
		opts.DialTimeout = timeout
	}

	rdb := redis.NewClient(opts)

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = rdb.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			log.Info("queue store connected", logx.String("addr", opts.Addr), logx.Int("db", opts.DB))
			return &RedisStore{rdb: rdb, log: log}, nil
		}
		log.Warn("queue store ping failed",
			logx.Int("attempt", attempt),
			logx.Err(lastErr),
		)
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(connectBackoff * time.Duration(attempt)):
		}
	}
	_ = rdb.Close()
	return nil, storeErr("connect", lastErr)
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) Enqueue(ctx context.Context, p *Payload, priority int) (string, error) {
	if !ValidPriority(priority) {
		return "", fmt.Errorf("priority %d out of range [%d, %d]", priority, MinPriority, MaxPriority)
	}

	id, err := s.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		return "", storeErr("incr job_counter", err)
	}

	cp := p.Clone()
	cp.JobID = strconv.FormatInt(id, 10)
	cp.Priority = priority

	b, err := encodePayload(cp)
	if err != nil {
		return "", err
	}
	if err := s.rdb.LPush(ctx, priorityListKey(priority), b).Err(); err != nil {
		return "", storeErr("lpush", err)
	}

	p.JobID = cp.JobID
	p.Priority = priority
	return cp.JobID, nil
}

func (s *RedisStore) DequeueBlocking(ctx context.Context, priority int, timeout time.Duration) (*Payload, error) {
	res, err := s.rdb.BRPop(ctx, timeout, priorityListKey(priority)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("brpop", err)
	}
	if len(res) != 2 {
		return nil, nil
	}

	p, err := decodePayload([]byte(res[1]))
	if err != nil {
		// The entry is already popped; park the raw bytes in dead-letter so
		// nothing is silently dropped and a poison entry can't wedge the loop.
		s.log.Warn("dropping undecodable queue entry to dead-letter", logx.Err(err))
		_ = s.rdb.LPush(ctx, deadLetterListKey, res[1]).Err()
		return nil, nil
	}
	return p, nil
}

func (s *RedisStore) Peek(ctx context.Context, priority, count int) ([]*Payload, error) {
	if count <= 0 {
		return nil, nil
	}
	// Next-served entries live at the tail; reverse so index 0 is next up.
	raw, err := s.rdb.LRange(ctx, priorityListKey(priority), int64(-count), -1).Result()
	if err != nil {
		return nil, storeErr("lrange", err)
	}
	out := make([]*Payload, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		p, err := decodePayload([]byte(raw[i]))
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	pipe := s.rdb.Pipeline()
	tierCmds := make(map[int]*redis.IntCmd, MaxPriority)
	for pr := MinPriority; pr <= MaxPriority; pr++ {
		tierCmds[pr] = pipe.LLen(ctx, priorityListKey(pr))
	}
	retryCmd := pipe.LLen(ctx, retryListKey)
	dlqCmd := pipe.LLen(ctx, deadLetterListKey)
	issuedCmd := pipe.Get(ctx, counterKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, storeErr("stats", err)
	}

	st := Stats{PerTier: make(map[int]int64, MaxPriority)}
	for pr, cmd := range tierCmds {
		n := cmd.Val()
		st.PerTier[pr] = n
		st.Total += n
	}
	st.Retry = retryCmd.Val()
	st.DeadLetter = dlqCmd.Val()
	if v, err := issuedCmd.Result(); err == nil {
		st.Issued, _ = strconv.ParseInt(v, 10, 64)
	}
	return st, nil
}

func (s *RedisStore) Clear(ctx context.Context, priority int) (int64, error) {
	tiers := []int{priority}
	if priority == 0 {
		tiers = []int{1, 2, 3, 4}
	}

	var removed int64
	for _, pr := range tiers {
		if !ValidPriority(pr) {
			return removed, fmt.Errorf("priority %d out of range [%d, %d]", pr, MinPriority, MaxPriority)
		}
		key := priorityListKey(pr)
		n, err := s.rdb.LLen(ctx, key).Result()
		if err != nil {
			return removed, storeErr("llen", err)
		}
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return removed, storeErr("del", err)
		}
		removed += n
	}
	return removed, nil
}

func (s *RedisStore) PushRetry(ctx context.Context, p *Payload) error {
	b, err := encodePayload(p)
	if err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, retryListKey, b).Err(); err != nil {
		return storeErr("lpush retry", err)
	}
	return nil
}

// PullDueRetries scans the whole retry list, removes entries whose
// retry_after has elapsed, and rewrites the remainder. Only the single
// worker touches the retry list, so the rewrite is race-free.
func (s *RedisStore) PullDueRetries(ctx context.Context, max int) ([]*Payload, error) {
	if max <= 0 {
		return nil, nil
	}
	raw, err := s.rdb.LRange(ctx, retryListKey, 0, -1).Result()
	if err != nil {
		return nil, storeErr("lrange retry", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	now := time.Now()
	due := make([]*Payload, 0, max)
	keep := make([]any, 0, len(raw))
	for _, item := range raw {
		p, err := decodePayload([]byte(item))
		if err != nil {
			s.log.Warn("dropping undecodable retry entry to dead-letter", logx.Err(err))
			_ = s.rdb.LPush(ctx, deadLetterListKey, item).Err()
			continue
		}
		if len(due) < max && (p.RetryAfter.IsZero() || !p.RetryAfter.After(now)) {
			due = append(due, p)
			continue
		}
		keep = append(keep, item)
	}
	if len(due) == 0 {
		return nil, nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, retryListKey)
	if len(keep) > 0 {
		pipe.RPush(ctx, retryListKey, keep...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr("rewrite retry", err)
	}
	return due, nil
}

func (s *RedisStore) PushDeadLetter(ctx context.Context, p *Payload) error {
	b, err := encodePayload(p)
	if err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, deadLetterListKey, b).Err(); err != nil {
		return storeErr("lpush dead_letter", err)
	}
	return nil
}

func (s *RedisStore) PeekDeadLetter(ctx context.Context, count int) ([]*Payload, error) {
	if count <= 0 {
		return nil, nil
	}
	// Newest entries first; LPUSH puts them at the head.
	raw, err := s.rdb.LRange(ctx, deadLetterListKey, 0, int64(count-1)).Result()
	if err != nil {
		return nil, storeErr("lrange dead_letter", err)
	}
	out := make([]*Payload, 0, len(raw))
	for _, item := range raw {
		p, err := decodePayload([]byte(item))
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RedisStore) ClearDeadLetter(ctx context.Context) (int64, error) {
	n, err := s.rdb.LLen(ctx, deadLetterListKey).Result()
	if err != nil {
		return 0, storeErr("llen dead_letter", err)
	}
	if err := s.rdb.Del(ctx, deadLetterListKey).Err(); err != nil {
		return 0, storeErr("del dead_letter", err)
	}
	return n, nil
}
