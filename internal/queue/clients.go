package queue

import (
	"context"
	"sync"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

// Poster is the outbound posting surface jobs execute against.
type Poster interface {
	// PostTweet publishes text and returns the platform's post ID.
	PostTweet(ctx context.Context, text string) (string, error)
	// Retweet reposts an existing post.
	Retweet(ctx context.Context, tweetID string) error
	// QuoteTweet posts comment quoting an existing post.
	QuoteTweet(ctx context.Context, tweetID, comment string) (string, error)
}

// Clients carries lazily-constructed handles to outbound integrations.
// Jobs receive it at execution time so process start-up doesn't pay for
// connections that no queued job ends up needing.
type Clients struct {
	mu  sync.Mutex
	log logx.Logger

	newPoster func() (Poster, error)
	poster    Poster
}

func NewClients(log logx.Logger, newPoster func() (Poster, error)) *Clients {
	return &Clients{log: log, newPoster: newPoster}
}

// Poster returns the posting client, constructing it on first use.
func (c *Clients) Poster() (Poster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poster != nil {
		return c.poster, nil
	}
	p, err := c.newPoster()
	if err != nil {
		return nil, err
	}
	c.log.Debug("posting client initialized")
	c.poster = p
	return p, nil
}
