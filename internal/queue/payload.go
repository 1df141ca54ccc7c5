package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Known payload field names on the wire.
const (
	fieldJobType    = "job_type"
	fieldPriority   = "priority"
	fieldJobID      = "job_id"
	fieldCreatedAt  = "created_at"
	fieldRetryCount = "retry_count"
	fieldRetryAfter = "retry_after"
	fieldLastError  = "last_error"
	fieldFinalError = "final_error"
	fieldFailedAt   = "failed_at"
)

// Payload is one queued job as it travels through the store.
//
// On the wire it is a single flat JSON object: the framing fields below plus
// the job type's own parameters (Params). JobID and Priority are always
// injected by the store at enqueue time, overwriting caller-supplied values.
type Payload struct {
	JobType  string
	Priority int
	JobID    string

	CreatedAt time.Time

	RetryCount int
	RetryAfter time.Time
	LastError  string

	FinalError string
	FailedAt   time.Time

	// Params holds the type-specific fields verbatim.
	Params map[string]any
}

// NewPayload builds a fresh producer-side payload. The store assigns JobID
// and stamps Priority on enqueue.
func NewPayload(jobType string, params map[string]any) *Payload {
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return &Payload{
		JobType:   jobType,
		CreatedAt: time.Now().UTC(),
		Params:    cp,
	}
}

// String returns a short description for logs.
func (p *Payload) String() string {
	return fmt.Sprintf("job %s type=%s priority=%d retries=%d", p.JobID, p.JobType, p.Priority, p.RetryCount)
}

// ParamString returns a string parameter, "" when absent or not a string.
func (p *Payload) ParamString(key string) string {
	if p.Params == nil {
		return ""
	}
	s, _ := p.Params[key].(string)
	return s
}

// Clone returns a deep-enough copy; Params values are shared but the map
// itself is fresh so framing mutations never alias across store round-trips.
func (p *Payload) Clone() *Payload {
	cp := *p
	cp.Params = make(map[string]any, len(p.Params))
	for k, v := range p.Params {
		cp.Params[k] = v
	}
	return &cp
}

// MarshalJSON flattens the payload into one JSON object.
// Zero-valued framing fields are omitted so fresh payloads stay minimal.
func (p *Payload) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Params)+8)
	for k, v := range p.Params {
		m[k] = v
	}
	m[fieldJobType] = p.JobType
	if p.Priority != 0 {
		m[fieldPriority] = p.Priority
	}
	if p.JobID != "" {
		m[fieldJobID] = p.JobID
	}
	if !p.CreatedAt.IsZero() {
		m[fieldCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339)
	}
	if p.RetryCount != 0 {
		m[fieldRetryCount] = p.RetryCount
	}
	if !p.RetryAfter.IsZero() {
		m[fieldRetryAfter] = p.RetryAfter.UTC().Format(time.RFC3339)
	}
	if p.LastError != "" {
		m[fieldLastError] = p.LastError
	}
	if p.FinalError != "" {
		m[fieldFinalError] = p.FinalError
	}
	if !p.FailedAt.IsZero() {
		m[fieldFailedAt] = p.FailedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits a flat object back into framing fields and Params.
func (p *Payload) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	out := Payload{Params: make(map[string]any)}

	for k, v := range m {
		switch k {
		case fieldJobType:
			out.JobType, _ = v.(string)
		case fieldPriority:
			out.Priority = jsonInt(v)
		case fieldJobID:
			out.JobID = jsonString(v)
		case fieldCreatedAt:
			out.CreatedAt = jsonTime(v)
		case fieldRetryCount:
			out.RetryCount = jsonInt(v)
		case fieldRetryAfter:
			out.RetryAfter = jsonTime(v)
		case fieldLastError:
			out.LastError, _ = v.(string)
		case fieldFinalError:
			out.FinalError, _ = v.(string)
		case fieldFailedAt:
			out.FailedAt = jsonTime(v)
		default:
			out.Params[k] = v
		}
	}

	if out.JobType == "" {
		return fmt.Errorf("payload missing %s", fieldJobType)
	}

	*p = out
	return nil
}

func jsonInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case json.Number:
		n, _ := x.Int64()
		return int(n)
	case int:
		return x
	default:
		return 0
	}
}

func jsonString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		// tolerate numeric job IDs written by older producers
		return fmt.Sprintf("%.0f", x)
	default:
		return ""
	}
}

func jsonTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodePayload(p *Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

func decodePayload(b []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &p, nil
}
