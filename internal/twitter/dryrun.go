package twitter

import (
	"context"
	"fmt"
	"sync/atomic"

	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

// DryRun logs what it would have posted instead of calling the platform.
// Selected when twitter.live is false.
type DryRun struct {
	log logx.Logger
	seq atomic.Int64
}

func NewDryRun(log logx.Logger) *DryRun {
	return &DryRun{log: log.With(logx.String("poster", "dry-run"))}
}

func (d *DryRun) PostTweet(ctx context.Context, text string) (string, error) {
	id := fmt.Sprintf("dry-%d", d.seq.Add(1))
	d.log.Info("would post tweet", logx.String("tweet_id", id), logx.String("text", ClampTweet(text)))
	return id, nil
}

func (d *DryRun) Retweet(ctx context.Context, tweetID string) error {
	d.log.Info("would retweet", logx.String("tweet_id", tweetID))
	return nil
}

func (d *DryRun) QuoteTweet(ctx context.Context, tweetID, comment string) (string, error) {
	id := fmt.Sprintf("dry-%d", d.seq.Add(1))
	d.log.Info("would quote tweet",
		logx.String("tweet_id", id),
		logx.String("quoted", tweetID),
		logx.String("text", ClampTweet(comment)),
	)
	return id, nil
}
