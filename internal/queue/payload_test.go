package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadWireFormatIsFlat(t *testing.T) {
	p := NewPayload("tweet", map[string]any{"content": "gm"})
	p.JobID = "7"
	p.Priority = 2
	p.RetryCount = 1
	p.LastError = "boom"

	b, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))

	assert.Equal(t, "tweet", m["job_type"])
	assert.Equal(t, "gm", m["content"], "type-specific fields stay at the top level")
	assert.Equal(t, float64(2), m["priority"])
	assert.Equal(t, "7", m["job_id"])
	assert.Equal(t, float64(1), m["retry_count"])
	assert.Equal(t, "boom", m["last_error"])
	_, hasFinal := m["final_error"]
	assert.False(t, hasFinal, "zero framing fields are omitted")
}

func TestPayloadRoundTrip(t *testing.T) {
	p := NewPayload("tweet", map[string]any{"content": "hello", "source": "daily_stats"})
	p.JobID = "42"
	p.Priority = 1
	p.RetryAfter = time.Now().Add(time.Minute).UTC().Truncate(time.Second)

	b, err := json.Marshal(p)
	require.NoError(t, err)

	var got Payload
	require.NoError(t, json.Unmarshal(b, &got))

	assert.Equal(t, p.JobType, got.JobType)
	assert.Equal(t, p.JobID, got.JobID)
	assert.Equal(t, p.Priority, got.Priority)
	assert.True(t, p.RetryAfter.Equal(got.RetryAfter))
	assert.Equal(t, "hello", got.ParamString("content"))
	assert.Equal(t, "daily_stats", got.ParamString("source"))
}

func TestPayloadRequiresJobType(t *testing.T) {
	var p Payload
	err := json.Unmarshal([]byte(`{"content":"hi"}`), &p)
	require.Error(t, err)
}

func TestPayloadToleratesNumericJobID(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"job_type":"tweet","job_id":12,"priority":3}`), &p))
	assert.Equal(t, "12", p.JobID)
	assert.Equal(t, 3, p.Priority)
}

func TestPayloadCloneDoesNotAliasParams(t *testing.T) {
	p := NewPayload("tweet", map[string]any{"content": "a"})
	cp := p.Clone()
	cp.Params["content"] = "b"
	assert.Equal(t, "a", p.ParamString("content"))
}
