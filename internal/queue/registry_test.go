package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	key    string
	policy RetryPolicy
	run    func(ctx context.Context) (bool, error)
}

func (j *stubJob) Execute(ctx context.Context, _ *Clients) (bool, error) {
	if j.run == nil {
		return true, nil
	}
	return j.run(ctx)
}

func (j *stubJob) RateLimitKey() string     { return j.key }
func (j *stubJob) RetryPolicy() RetryPolicy { return j.policy }

func registerStub(reg *Registry, jobType string, validate func(*Payload) error, job *stubJob) {
	if job.key == "" {
		job.key = jobType
	}
	reg.Register(jobType, Entry{
		Validate: validate,
		New:      func(*Payload) Job { return job },
	})
}

func TestRegistryUnknownType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.CreateJob(NewPayload("nope", nil))
	require.ErrorIs(t, err, ErrUnknownJobType)
	assert.Contains(t, err.Error(), "nope")
}

func TestRegistryInvalidParameters(t *testing.T) {
	reg := NewRegistry()
	registerStub(reg, "tweet", func(p *Payload) error {
		if p.ParamString("content") == "" {
			return errors.New("content is required")
		}
		return nil
	}, &stubJob{})

	_, err := reg.CreateJob(NewPayload("tweet", nil))
	require.ErrorIs(t, err, ErrInvalidParameters)

	job, err := reg.CreateJob(NewPayload("tweet", map[string]any{"content": "ok"}))
	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestRegistryTypesSorted(t *testing.T) {
	reg := NewRegistry()
	registerStub(reg, "retweet", nil, &stubJob{})
	registerStub(reg, "tweet", nil, &stubJob{})
	registerStub(reg, "quote_tweet", nil, &stubJob{})

	assert.Equal(t, []string{"quote_tweet", "retweet", "tweet"}, reg.Types())
}
