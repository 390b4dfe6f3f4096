package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"streamworker/internal/config"
	"streamworker/internal/deps"
	"streamworker/internal/dispatch"
	"streamworker/internal/ffmpeg"
	"streamworker/internal/ledger"
	"streamworker/internal/logging"
	"streamworker/internal/objectstore"
	"streamworker/internal/preflight"
	"streamworker/internal/queueclient"
)

// Options configures worker process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Logger replaces the configured logger, mainly for tests.
	Logger *slog.Logger
}

// Run starts the worker and blocks until SIGINT, SIGTERM, or ctx
// cancellation. Startup failures are returned; a clean shutdown returns nil.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (err error) {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = newLogger(cfg, opts)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	logger = logger.With(logging.String(logging.FieldWorkerID, cfg.Worker.ID))

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "worker crashed", "worker_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("worker crashed: %v", r)
		}
	}()

	lock, err := acquireLock(cfg.LockPath(), cfg.Worker.ID)
	if err != nil {
		return err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("failed to release worker lock", logging.Error(unlockErr))
		}
	}()

	logDependencySnapshot(logger, cfg)

	queue, err := queueclient.New(cfg.Queue, logger)
	if err != nil {
		return fmt.Errorf("create queue client: %w", err)
	}
	store, err := objectstore.New(cfg.Store, cfg.Stream, logger)
	if err != nil {
		return fmt.Errorf("create object store client: %w", err)
	}

	if cfg.Preflight.Enabled {
		results := preflight.RunAll(signalCtx, cfg, preflight.Targets{Queue: queue, Store: store})
		logPreflight(logger, results)
		if err := preflight.Evaluate(results, cfg.Preflight.Strict); err != nil {
			return err
		}
	}

	wiring := dispatch.Deps{
		Queue: queue,
		Store: store,
		Media: ffmpeg.NewSupervisor(cfg.FFmpegBinary(), ffmpeg.TimingFromConfig(cfg.FFmpeg), logger),
	}
	if l, ledgerErr := ledger.Open(cfg); ledgerErr != nil {
		logging.WarnWithContext(logger, "job ledger unavailable", "ledger_open_failed",
			logging.Error(ledgerErr),
			logging.String(logging.FieldErrorHint, "delete the ledger file if its schema is outdated"),
			logging.String(logging.FieldImpact, "'streamworker history' will not show jobs from this run"),
		)
	} else {
		defer l.Close()
		wiring.Ledger = l
	}

	dispatcher, err := dispatch.New(cfg, wiring, logger)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	logger.Info("streamworker started",
		logging.String(logging.FieldEventType, "worker_started"),
		logging.String("queue", cfg.Queue.BaseURL),
		logging.String("lock", cfg.LockPath()),
	)
	if err := dispatcher.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("streamworker shutting down", logging.String(logging.FieldEventType, "worker_stopped"))
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	logOpts := logging.OptionsFromConfig(cfg)
	if strings.TrimSpace(opts.LogLevel) != "" {
		logOpts.Level = opts.LogLevel
	}
	logOpts.Development = opts.Development
	return logging.New(logOpts)
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, r := range results {
		attrs := []logging.Attr{
			logging.String("check", r.Name),
			logging.Bool("required", r.Required),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_check"),
		}
		if r.Passed {
			logger.Info("preflight check passed", logging.Args(attrs...)...)
			continue
		}
		logger.Warn("preflight check failed", logging.Args(attrs...)...)
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	ffmpegStatus := deps.CheckBinaries([]deps.Requirement{{Name: "FFmpeg", Command: cfg.FFmpegBinary()}})[0]
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("ffmpeg_binary", ffmpegStatus.Command),
		logging.Bool("ffmpeg_available", ffmpegStatus.Available),
		logging.Bool("store_configured", strings.TrimSpace(cfg.Store.Endpoint) != ""),
		logging.String("bucket", cfg.Store.Bucket),
		logging.Bool("probe_source", cfg.Stream.ProbeSource),
	)
}
