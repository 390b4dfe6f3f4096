package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

const defaultLimit = 20

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const outcomeColumns = `id, job_id, kind, subject_id, worker, status, error_message,
    error_hint, output_key, last_bitrate, started_at, finished_at`

// Outcome is one finished job as seen by this worker.
type Outcome struct {
	ID          string
	JobID       string
	Kind        string
	SubjectID   string
	Worker      string
	Status      string
	Error       string
	Hint        string
	OutputKey   string
	LastBitrate *float64
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration is the wall time between ACTIVE and the terminal report, or zero
// when the job never became active.
func (o Outcome) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.FinishedAt.Before(o.StartedAt) {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Filter narrows Recent. Zero values match everything.
type Filter struct {
	Kind   string
	Status string
	JobID  string
	Limit  int
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row scanner) (Outcome, error) {
	var (
		rec                              Outcome
		subject, errMsg, hint, outputKey sql.NullString
		bitrate                          sql.NullFloat64
		started                          sql.NullString
		finished                         string
	)
	if err := row.Scan(
		&rec.ID, &rec.JobID, &rec.Kind, &subject, &rec.Worker, &rec.Status,
		&errMsg, &hint, &outputKey, &bitrate, &started, &finished,
	); err != nil {
		return Outcome{}, fmt.Errorf("scan outcome: %w", err)
	}
	rec.SubjectID = subject.String
	rec.Error = errMsg.String
	rec.Hint = hint.String
	rec.OutputKey = outputKey.String
	if bitrate.Valid {
		value := bitrate.Float64
		rec.LastBitrate = &value
	}
	if started.Valid {
		rec.StartedAt = parseTime(started.String)
	}
	rec.FinishedAt = parseTime(finished)
	return rec, nil
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(timeLayout)
}
