package jobs

import (
	"context"
	"fmt"

	"github.com/hypexbt/hypexbt/internal/queue"
)

// EnqueueTweet validates at the producer boundary and enqueues a tweet job.
// source tags where the content came from (daily_stats, trading_signal, ...).
func EnqueueTweet(ctx context.Context, store queue.Store, content, source string, priority int) (string, error) {
	if !queue.ValidPriority(priority) {
		return "", fmt.Errorf("priority must be between %d and %d, got %d", queue.MinPriority, queue.MaxPriority, priority)
	}
	params := map[string]any{"content": content}
	if source != "" {
		params["source"] = source
	}
	p := queue.NewPayload(TypeTweet, params)
	if err := validateTweet(p); err != nil {
		return "", fmt.Errorf("%w: %v", queue.ErrInvalidParameters, err)
	}
	return store.Enqueue(ctx, p, priority)
}

// EnqueueRetweet enqueues a retweet job for an existing post.
func EnqueueRetweet(ctx context.Context, store queue.Store, tweetID string, priority int) (string, error) {
	if !queue.ValidPriority(priority) {
		return "", fmt.Errorf("priority must be between %d and %d, got %d", queue.MinPriority, queue.MaxPriority, priority)
	}
	p := queue.NewPayload(TypeRetweet, map[string]any{"tweet_id": tweetID})
	if err := requireParams("tweet_id")(p); err != nil {
		return "", fmt.Errorf("%w: %v", queue.ErrInvalidParameters, err)
	}
	return store.Enqueue(ctx, p, priority)
}

// EnqueueQuoteTweet enqueues a quote-tweet job.
func EnqueueQuoteTweet(ctx context.Context, store queue.Store, tweetID, comment string, priority int) (string, error) {
	if !queue.ValidPriority(priority) {
		return "", fmt.Errorf("priority must be between %d and %d, got %d", queue.MinPriority, queue.MaxPriority, priority)
	}
	p := queue.NewPayload(TypeQuoteTweet, map[string]any{"tweet_id": tweetID, "comment": comment})
	if err := validateQuoteTweet(p); err != nil {
		return "", fmt.Errorf("%w: %v", queue.ErrInvalidParameters, err)
	}
	return store.Enqueue(ctx, p, priority)
}
