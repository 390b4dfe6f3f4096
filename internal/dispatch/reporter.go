package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"streamworker/internal/job"
	"streamworker/internal/ledger"
	"streamworker/internal/logging"
	"streamworker/internal/services"
)

// reporter enforces report ordering for one job: ACTIVE at most once and
// first, PROGRESS only between ACTIVE and the terminal report, and exactly
// one terminal report. Reports are sent on a context detached from
// cancellation so a shutdown still delivers the terminal status.
type reporter struct {
	queue   Queue
	subject job.Subject
	worker  string
	now     func() time.Time
	logger  *slog.Logger

	mu          sync.Mutex
	active      bool
	terminal    bool
	status      job.Status
	reason      string
	hint        string
	outputKey   string
	lastBitrate *float64
	startedAt   time.Time
	finishedAt  time.Time
}

func newReporter(queue Queue, subject job.Subject, worker string, now func() time.Time, logger *slog.Logger) *reporter {
	return &reporter{queue: queue, subject: subject, worker: worker, now: now, logger: logger}
}

func (r *reporter) send(ctx context.Context, report job.StatusReport) {
	r.queue.Report(context.WithoutCancel(ctx), report)
}

func (r *reporter) markActive(ctx context.Context) {
	r.mu.Lock()
	if r.active || r.terminal {
		r.mu.Unlock()
		return
	}
	r.active = true
	r.startedAt = r.now()
	report := r.subject.Active(r.worker, r.startedAt)
	r.mu.Unlock()

	r.logger.Info("job active", logging.String(logging.FieldEventType, "job_active"))
	r.send(ctx, report)
}

func (r *reporter) progress(ctx context.Context, bitrate float64) {
	r.mu.Lock()
	if !r.active || r.terminal {
		r.mu.Unlock()
		return
	}
	value := bitrate
	r.lastBitrate = &value
	report := r.subject.Progress(r.worker, r.now(), bitrate)
	r.mu.Unlock()

	r.logger.Debug("job progress", logging.Float64("bitrate_kbps", bitrate))
	r.send(ctx, report)
}

func (r *reporter) completed(ctx context.Context, outputKey string) {
	r.mu.Lock()
	if r.terminal {
		r.mu.Unlock()
		return
	}
	r.terminal = true
	r.status = job.StatusCompleted
	r.outputKey = outputKey
	r.finishedAt = r.now()
	report := r.subject.Completed(r.worker, r.finishedAt, outputKey)
	r.mu.Unlock()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_completed"),
		logging.Duration("duration", r.elapsed()),
	}
	if outputKey != "" {
		attrs = append(attrs, logging.String("output_key", outputKey))
	}
	r.logger.Info("job completed", logging.Args(attrs...)...)
	r.send(ctx, report)
}

func (r *reporter) fail(ctx context.Context, err error) {
	r.mu.Lock()
	if r.terminal {
		r.mu.Unlock()
		return
	}
	r.terminal = true
	r.status = job.StatusFailed
	r.hint = services.Hint(err)
	r.reason = failureReason(err)
	r.finishedAt = r.now()
	report := r.subject.Failed(r.worker, r.finishedAt, r.reason)
	r.mu.Unlock()

	attrs := append(logging.ErrorAttrs(err),
		logging.String(logging.FieldEventType, "job_failed"),
		logging.Alert("job_failure"),
	)
	r.logger.Error("job failed", logging.Args(attrs...)...)
	r.send(ctx, report)
}

func (r *reporter) ensureTerminal(ctx context.Context) {
	r.mu.Lock()
	done := r.terminal
	r.mu.Unlock()
	if done {
		return
	}
	r.fail(ctx, services.Wrap(services.ErrTransient, "dispatch", "run job", "job ended without a terminal status", nil))
}

func (r *reporter) elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startedAt.IsZero() {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

func (r *reporter) outcome() ledger.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ledger.Outcome{
		JobID:       r.subject.JobID,
		Kind:        string(r.subject.Kind),
		SubjectID:   r.subject.SubjectID,
		Worker:      r.worker,
		Status:      string(r.status),
		Error:       r.reason,
		Hint:        r.hint,
		OutputKey:   r.outputKey,
		LastBitrate: r.lastBitrate,
		StartedAt:   r.startedAt,
		FinishedAt:  r.finishedAt,
	}
}

// failureReason is the operator-facing error text sent to the queue.
func failureReason(err error) string {
	if err == nil {
		return ""
	}
	reason := strings.TrimSpace(err.Error())
	if hint := services.Hint(err); hint != "" {
		reason += " (hint: " + hint + ")"
	}
	return reason
}
