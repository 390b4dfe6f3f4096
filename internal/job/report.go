package job

import "time"

// Status is the lifecycle state reported to the queue owner.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusProgress  Status = "PROGRESS"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal reports whether s ends a job.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Subject identifies the job a report is about.
type Subject struct {
	Kind      Kind
	JobID     string
	SubjectID string
}

// StatusReport is the callback body. The discriminant id is streamId for
// STREAM jobs and videoId for TRANSFORM jobs.
type StatusReport struct {
	StreamID    string   `json:"streamId,omitempty"`
	VideoID     string   `json:"videoId,omitempty"`
	JobID       string   `json:"jobId"`
	Status      Status   `json:"status"`
	StartedAt   string   `json:"startedAt,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
	EndedAt     string   `json:"endedAt,omitempty"`
	Worker      string   `json:"worker"`
	Bitrate     *float64 `json:"bitrate,omitempty"`
	Error       string   `json:"error,omitempty"`
	OutputS3Key string   `json:"outputS3Key,omitempty"`
}

func (s Subject) report(status Status, worker string) StatusReport {
	r := StatusReport{JobID: s.JobID, Status: status, Worker: worker}
	if s.Kind == KindTransform {
		r.VideoID = s.SubjectID
	} else {
		r.StreamID = s.SubjectID
	}
	return r
}

// Active builds the first report of a job.
func (s Subject) Active(worker string, at time.Time) StatusReport {
	r := s.report(StatusActive, worker)
	r.StartedAt = formatTime(at)
	return r
}

// Progress builds a health metric report.
func (s Subject) Progress(worker string, at time.Time, bitrate float64) StatusReport {
	r := s.report(StatusProgress, worker)
	r.Timestamp = formatTime(at)
	r.Bitrate = &bitrate
	return r
}

// Completed builds a successful terminal report. outputKey is empty for
// STREAM jobs.
func (s Subject) Completed(worker string, at time.Time, outputKey string) StatusReport {
	r := s.report(StatusCompleted, worker)
	r.EndedAt = formatTime(at)
	r.OutputS3Key = outputKey
	return r
}

// Failed builds a failed terminal report.
func (s Subject) Failed(worker string, at time.Time, reason string) StatusReport {
	r := s.report(StatusFailed, worker)
	r.EndedAt = formatTime(at)
	if reason == "" {
		reason = "job failed"
	}
	r.Error = reason
	return r
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
