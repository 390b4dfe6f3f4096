package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"streamworker/internal/config"
	"streamworker/internal/ffmpeg"
	"streamworker/internal/job"
	"streamworker/internal/ledger"
	"streamworker/internal/logging"
	"streamworker/internal/objectstore"
	"streamworker/internal/services"
)

// Queue is the remote job source and status sink.
type Queue interface {
	FetchNext(ctx context.Context) (*job.Envelope, error)
	Report(ctx context.Context, report job.StatusReport) bool
}

// Store moves job media in and out of object storage.
type Store interface {
	Configured() bool
	Bucket() string
	Download(ctx context.Context, key, localPath string) error
	Upload(ctx context.Context, localPath, key, contentType string) error
	Probe(ctx context.Context, locator string) objectstore.ProbeResult
}

// Media runs the media tool.
type Media interface {
	StartStream(ctx context.Context, j job.StreamJob, input string) (*ffmpeg.Process, error)
	Monitor(ctx context.Context, p *ffmpeg.Process, fallback float64, onMetric func(float64))
	Wait(ctx context.Context, p *ffmpeg.Process) ffmpeg.Result
	Stop(p *ffmpeg.Process)
	RunTransform(ctx context.Context, input, output string, maxHeight int) (ffmpeg.Result, error)
}

// Ledger records finished jobs.
type Ledger interface {
	Record(ctx context.Context, rec ledger.Outcome) (ledger.Outcome, error)
}

// Deps bundles the collaborators a Dispatcher drives. Ledger may be nil.
type Deps struct {
	Queue  Queue
	Store  Store
	Media  Media
	Ledger Ledger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithSleeper replaces the idle and crash-cooldown wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// WithClock replaces the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher pulls one job at a time and drives it to a terminal report.
type Dispatcher struct {
	queue  Queue
	store  Store
	media  Media
	ledger Ledger
	logger *slog.Logger

	worker        string
	workDir       string
	pollInterval  time.Duration
	crashCooldown time.Duration
	probeSource   bool
	maxHeight     int
	contentType   string

	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// New wires a Dispatcher from cfg and deps.
func New(cfg *config.Config, deps Deps, logger *slog.Logger, opts ...Option) (*Dispatcher, error) {
	if cfg == nil {
		return nil, errors.New("dispatch: config is required")
	}
	if deps.Queue == nil || deps.Store == nil || deps.Media == nil {
		return nil, errors.New("dispatch: queue, store, and media dependencies are required")
	}
	d := &Dispatcher{
		queue:         deps.Queue,
		store:         deps.Store,
		media:         deps.Media,
		ledger:        deps.Ledger,
		logger:        logging.NewComponentLogger(logger, "dispatch"),
		worker:        cfg.Worker.ID,
		workDir:       cfg.Paths.WorkDir,
		pollInterval:  cfg.PollInterval(),
		crashCooldown: cfg.CrashCooldown(),
		probeSource:   cfg.Stream.ProbeSource,
		maxHeight:     cfg.Transform.MaxHeight,
		contentType:   cfg.Transform.ContentType,
		sleep:         sleepContext,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run polls until ctx is done. A panic that escapes an iteration is logged
// and followed by the crash cooldown; the loop then resumes.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started",
		logging.String(logging.FieldWorkerID, d.worker),
		logging.Duration("poll_interval", d.pollInterval),
	)
	for ctx.Err() == nil {
		processed, crashed := d.guardedIteration(ctx)
		switch {
		case crashed:
			d.sleep(ctx, d.crashCooldown)
		case !processed:
			d.sleep(ctx, d.pollInterval)
		}
	}
	d.logger.Info("dispatcher stopped", logging.String(logging.FieldEventType, "dispatcher_stopped"))
	return nil
}

func (d *Dispatcher) guardedIteration(ctx context.Context) (processed, crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			crashed = true
			logging.ErrorWithContext(d.logger, "dispatcher iteration crashed", "dispatcher_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.Duration("cooldown", d.crashCooldown),
				logging.String(logging.FieldImpact, "polling pauses for the crash cooldown"),
			)
		}
	}()
	return d.RunOnce(ctx), false
}

// RunOnce fetches and fully processes at most one job. It reports whether a
// job was handled.
func (d *Dispatcher) RunOnce(ctx context.Context) bool {
	env, err := d.queue.FetchNext(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "queue returned an unusable job", "job_decode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the queue owner sent a body that is not a JSON object"),
		)
		return false
	}
	if env == nil {
		return false
	}
	d.handle(ctx, env)
	return true
}

func (d *Dispatcher) handle(ctx context.Context, env *job.Envelope) {
	subject := env.Subject()
	correlationID := uuid.NewString()
	ctx = services.WithJobID(ctx, subject.JobID)
	ctx = services.WithJobKind(ctx, string(subject.Kind))
	ctx = services.WithRequestID(ctx, correlationID)
	logger := logging.WithContext(ctx, d.logger)
	rep := newReporter(d.queue, subject, d.worker, d.now, logger)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "job crashed", "job_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			rep.fail(ctx, services.Wrap(services.ErrTransient, "dispatch", "run job", fmt.Sprintf("internal error: %v", r), nil))
		}
		rep.ensureTerminal(ctx)
		d.record(ctx, correlationID, rep)
	}()

	validated, err := job.Validate(env)
	if err != nil {
		logger.Warn("job rejected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_invalid"),
		)
		rep.fail(ctx, err)
		return
	}

	logger.Info("job received",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("subject_id", subject.SubjectID),
	)
	switch j := validated.(type) {
	case job.StreamJob:
		d.runStream(ctx, j, rep, logger)
	case job.TransformJob:
		d.runTransform(ctx, j, rep, logger)
	default:
		rep.fail(ctx, services.Wrap(services.ErrValidation, "dispatch", "run job", fmt.Sprintf("unsupported job kind %q", validated.Kind()), nil))
	}
}

func (d *Dispatcher) record(ctx context.Context, id string, rep *reporter) {
	if d.ledger == nil {
		return
	}
	outcome := rep.outcome()
	outcome.ID = id
	if _, err := d.ledger.Record(context.WithoutCancel(ctx), outcome); err != nil {
		d.logger.Warn("job outcome not recorded",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ledger_write_failed"),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
