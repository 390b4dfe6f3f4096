package job

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Kind discriminates the job payload variants.
type Kind string

const (
	KindStream    Kind = "STREAM"
	KindTransform Kind = "TRANSFORM"
)

// Job is a validated unit of work. The concrete type is StreamJob or
// TransformJob.
type Job interface {
	ID() string
	Kind() Kind
	Subject() Subject
}

// StreamJob pushes a stored video to an RTMP ingest.
type StreamJob struct {
	JobID     string
	StreamID  string
	SourceURL string
	// SourceKey is the explicit store key for the source, when the queue
	// supplies one. It takes precedence over deriving a key from SourceURL.
	SourceKey string
	Ingest    string
	StreamKey string
	FPS       int
	VideoKbps int
	AudioKbps int
	Loop      bool
	Title     string
	Category  string
}

func (j StreamJob) ID() string { return j.JobID }

func (j StreamJob) Kind() Kind { return KindStream }

func (j StreamJob) Subject() Subject {
	return Subject{Kind: KindStream, JobID: j.JobID, SubjectID: j.StreamID}
}

// Envelope renders the job back into its wire shape.
func (j StreamJob) Envelope() *Envelope {
	fields := map[string]any{
		"type":      string(KindStream),
		"jobId":     j.JobID,
		"streamId":  j.StreamID,
		"s3Url":     j.SourceURL,
		"ingest":    j.Ingest,
		"streamKey": j.StreamKey,
		"fps":       j.FPS,
		"vb":        j.VideoKbps,
		"ab":        j.AudioKbps,
		"loop":      j.Loop,
	}
	if j.SourceKey != "" {
		fields["s3Key"] = j.SourceKey
	}
	if j.Title != "" {
		fields["title"] = j.Title
	}
	if j.Category != "" {
		fields["category"] = j.Category
	}
	return &Envelope{fields: fields}
}

// TransformJob transcodes a stored object into a new stored object.
type TransformJob struct {
	JobID     string
	VideoID   string
	InputKey  string
	OutputKey string
	// MaxHeight caps the output resolution; zero selects the worker default.
	MaxHeight int
}

func (j TransformJob) ID() string { return j.JobID }

func (j TransformJob) Kind() Kind { return KindTransform }

func (j TransformJob) Subject() Subject {
	return Subject{Kind: KindTransform, JobID: j.JobID, SubjectID: j.VideoID}
}

// Envelope renders the job back into its wire shape.
func (j TransformJob) Envelope() *Envelope {
	fields := map[string]any{
		"type":        string(KindTransform),
		"jobId":       j.JobID,
		"videoId":     j.VideoID,
		"inputS3Key":  j.InputKey,
		"outputS3Key": j.OutputKey,
	}
	if j.MaxHeight > 0 {
		fields["maxHeight"] = j.MaxHeight
	}
	return &Envelope{fields: fields}
}

// Envelope is the undecoded job as received from the queue. Numbers keep
// their textual form until validation coerces them.
type Envelope struct {
	fields map[string]any
}

// DecodeEnvelope parses a job body. Only structural JSON errors are reported
// here; field problems surface from Validate.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode job: body is not a JSON object")
	}
	return &Envelope{fields: fields}, nil
}

// NewEnvelope wraps already-decoded fields, mainly for tests and tooling.
func NewEnvelope(fields map[string]any) *Envelope {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &Envelope{fields: copied}
}

// Field returns the raw value of a wire field.
func (e *Envelope) Field(name string) (any, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.fields[name]
	return v, ok
}

// MarshalJSON emits the wire form.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.fields)
}

// Subject returns the best-effort identity of the envelope so a failure can
// be reported even when validation rejects it.
func (e *Envelope) Subject() Subject {
	kind, err := e.kind()
	if err != nil {
		kind = KindStream
	}
	subject := Subject{Kind: kind, JobID: e.looseString("jobId")}
	if kind == KindTransform {
		subject.SubjectID = e.looseString("videoId")
	} else {
		subject.SubjectID = e.looseString("streamId")
	}
	return subject
}

func (e *Envelope) kind() (Kind, error) {
	raw, ok := e.Field("type")
	if !ok || raw == nil {
		return KindStream, nil
	}
	text, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("must be a string")
	}
	switch Kind(strings.ToUpper(strings.TrimSpace(text))) {
	case "", KindStream:
		return KindStream, nil
	case KindTransform:
		return KindTransform, nil
	default:
		return "", fmt.Errorf("unknown job kind %q", text)
	}
}

func (e *Envelope) looseString(name string) string {
	raw, ok := e.Field(name)
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
