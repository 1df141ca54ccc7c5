// Package jobs wires the concrete job kinds into the queue registry.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/hypexbt/hypexbt/internal/queue"
	"github.com/hypexbt/hypexbt/internal/twitter"
	logx "github.com/hypexbt/hypexbt/pkg/logx"
)

// Registered job type tags.
const (
	TypeTweet      = "tweet"
	TypeRetweet    = "retweet"
	TypeQuoteTweet = "quote_tweet"
)

// RegisterAll wires every job kind at process start-up. policies maps a job
// type to its retry budget; missing types use the default policy.
func RegisterAll(reg *queue.Registry, policies map[string]queue.RetryPolicy, log logx.Logger) {
	policy := func(jobType string) queue.RetryPolicy {
		if p, ok := policies[jobType]; ok {
			return p
		}
		return queue.DefaultRetryPolicy()
	}

	reg.Register(TypeTweet, queue.Entry{
		Validate: validateTweet,
		New: func(p *queue.Payload) queue.Job {
			return &tweetJob{content: p.ParamString("content"), policy: policy(TypeTweet), log: log}
		},
	})
	reg.Register(TypeRetweet, queue.Entry{
		Validate: requireParams("tweet_id"),
		New: func(p *queue.Payload) queue.Job {
			return &retweetJob{tweetID: p.ParamString("tweet_id"), policy: policy(TypeRetweet), log: log}
		},
	})
	reg.Register(TypeQuoteTweet, queue.Entry{
		Validate: validateQuoteTweet,
		New: func(p *queue.Payload) queue.Job {
			return &quoteTweetJob{
				tweetID: p.ParamString("tweet_id"),
				comment: p.ParamString("comment"),
				policy:  policy(TypeQuoteTweet),
				log:     log,
			}
		},
	})
}

func validateTweet(p *queue.Payload) error {
	content := p.ParamString("content")
	if content == "" {
		return errors.New("content is required")
	}
	if n := utf8.RuneCountInString(content); n > twitter.MaxTweetLength {
		return fmt.Errorf("content is %d characters, limit is %d", n, twitter.MaxTweetLength)
	}
	return nil
}

func validateQuoteTweet(p *queue.Payload) error {
	if err := requireParams("tweet_id")(p); err != nil {
		return err
	}
	comment := p.ParamString("comment")
	if comment == "" {
		return errors.New("comment is required")
	}
	if n := utf8.RuneCountInString(comment); n > twitter.MaxTweetLength {
		return fmt.Errorf("comment is %d characters, limit is %d", n, twitter.MaxTweetLength)
	}
	return nil
}

func requireParams(keys ...string) func(*queue.Payload) error {
	return func(p *queue.Payload) error {
		for _, k := range keys {
			if p.ParamString(k) == "" {
				return fmt.Errorf("%s is required", k)
			}
		}
		return nil
	}
}

// classify converts a poster error into the worker's success-signal
// contract: business rejections are plain failed attempts, everything else
// is an ExecutionError.
func classify(jobType string, err error, log logx.Logger) (bool, error) {
	var apiErr *twitter.APIError
	if errors.As(err, &apiErr) && apiErr.Business() {
		log.Warn("post rejected by platform", logx.String("job_type", jobType), logx.Err(apiErr))
		return false, nil
	}
	if errors.Is(err, queue.ErrRejected) {
		log.Warn("post rejected by platform", logx.String("job_type", jobType), logx.Err(err))
		return false, nil
	}
	return false, &queue.ExecutionError{JobType: jobType, Err: err}
}

type tweetJob struct {
	content string
	policy  queue.RetryPolicy
	log     logx.Logger
}

func (j *tweetJob) Execute(ctx context.Context, clients *queue.Clients) (bool, error) {
	poster, err := clients.Poster()
	if err != nil {
		return false, &queue.ExecutionError{JobType: TypeTweet, Err: err}
	}
	if _, err := poster.PostTweet(ctx, j.content); err != nil {
		return classify(TypeTweet, err, j.log)
	}
	return true, nil
}

func (j *tweetJob) RateLimitKey() string { return TypeTweet }
func (j *tweetJob) RetryPolicy() queue.RetryPolicy { return j.policy }

type retweetJob struct {
	tweetID string
	policy  queue.RetryPolicy
	log     logx.Logger
}

func (j *retweetJob) Execute(ctx context.Context, clients *queue.Clients) (bool, error) {
	poster, err := clients.Poster()
	if err != nil {
		return false, &queue.ExecutionError{JobType: TypeRetweet, Err: err}
	}
	if err := poster.Retweet(ctx, j.tweetID); err != nil {
		return classify(TypeRetweet, err, j.log)
	}
	return true, nil
}

func (j *retweetJob) RateLimitKey() string { return TypeRetweet }
func (j *retweetJob) RetryPolicy() queue.RetryPolicy { return j.policy }

type quoteTweetJob struct {
	tweetID string
	comment string
	policy  queue.RetryPolicy
	log     logx.Logger
}

func (j *quoteTweetJob) Execute(ctx context.Context, clients *queue.Clients) (bool, error) {
	poster, err := clients.Poster()
	if err != nil {
		return false, &queue.ExecutionError{JobType: TypeQuoteTweet, Err: err}
	}
	if _, err := poster.QuoteTweet(ctx, j.tweetID, j.comment); err != nil {
		return classify(TypeQuoteTweet, err, j.log)
	}
	return true, nil
}

func (j *quoteTweetJob) RateLimitKey() string { return TypeQuoteTweet }
func (j *quoteTweetJob) RetryPolicy() queue.RetryPolicy { return j.policy }
