package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"streamworker/internal/job"
	"streamworker/internal/logging"
	"streamworker/internal/services"
)

const (
	causeMaxRuntime = "max runtime exceeded"
	causeShutdown   = "worker shutting down"
	causeAborted    = "job aborted"
)

// Result is the outcome of a reaped process.
type Result struct {
	State    State
	ExitCode int
	Duration time.Duration
	Cause    string
	Tail     []string
	Dropped  int
}

// Success reports a natural zero exit.
func (r Result) Success() bool {
	return r.State == StateExited && r.ExitCode == 0
}

// Err returns nil only for a natural zero exit. A stopped process is always
// a failure, whatever its exit code.
func (r Result) Err() error {
	if r.Success() {
		return nil
	}
	tail := strings.Join(r.Tail, "\n")
	switch r.State {
	case StateTimedOut, StateKilled:
		msg := fmt.Sprintf("ffmpeg %s after %s (%s)", r.State, r.Duration.Round(time.Millisecond), r.Cause)
		if tail != "" {
			msg += ": " + tail
		}
		return services.Wrap(services.ErrTimeout, "ffmpeg", "wait", msg, nil)
	default:
		msg := fmt.Sprintf("ffmpeg exited with code %d", r.ExitCode)
		if tail != "" {
			msg += ": " + tail
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "wait", msg, nil)
	}
}

// StartupError reports a process that died inside the startup grace period.
type StartupError struct {
	ExitCode int
	Tail     []string
}

func (e *StartupError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited during startup with code %d", e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + strings.Join(e.Tail, "\n")
	}
	return msg
}

func (e *StartupError) Unwrap() error { return services.ErrExternalTool }

// Supervisor launches and supervises media tool processes.
type Supervisor struct {
	binary string
	timing Timing
	logger *slog.Logger
}

// NewSupervisor creates a Supervisor for binary.
func NewSupervisor(binary string, timing Timing, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{
		binary: binary,
		timing: timing,
		logger: logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Timing returns the supervision bounds in use.
func (s *Supervisor) Timing() Timing { return s.timing }

// Start launches the media tool with args.
func (s *Supervisor) Start(ctx context.Context, args []string) (*Process, error) {
	p, err := Start(ctx, s.binary, args, s.timing.TailLines)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "start", "launch failed", err)
	}
	logging.WithContext(ctx, s.logger).Info("ffmpeg started",
		logging.Int("pid", p.PID()),
		logging.String("args", strings.Join(redactArgs(args), " ")),
	)
	return p, nil
}

// StartStream launches a live push and holds it through the startup grace
// period. A non-zero exit inside the grace period is a StartupError. A zero
// exit is handed back so the caller can collect its output normally.
func (s *Supervisor) StartStream(ctx context.Context, j job.StreamJob, input string) (*Process, error) {
	p, err := s.Start(ctx, StreamArgs(j, input))
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(s.timing.StartupGrace)
	defer timer.Stop()
	select {
	case <-timer.C:
		return p, nil
	case <-p.Done():
		state, code := p.State()
		if state == StateExited && code == 0 {
			return p, nil
		}
		return nil, &StartupError{ExitCode: code, Tail: p.Tail()}
	case <-ctx.Done():
		p.terminate(s.timing.TerminateGrace, causeShutdown)
		return nil, ctx.Err()
	}
}

// Monitor surfaces bitrate metrics through onMetric: the first one at once,
// later ones at most once per progress interval. It returns when the monitor
// window expires, the output ends, or ctx is done. If the window expires with
// the process still running and no metric seen, onMetric receives fallback.
func (s *Supervisor) Monitor(ctx context.Context, p *Process, fallback float64, onMetric func(float64)) {
	window := time.NewTimer(s.timing.MonitorWindow)
	defer window.Stop()

	var (
		seen       bool
		lastReport time.Time
	)
	for {
		select {
		case line, ok := <-p.Lines():
			if !ok {
				return
			}
			value, ok := ParseBitrate(line)
			if !ok {
				continue
			}
			now := time.Now()
			if !seen || now.Sub(lastReport) >= s.timing.ProgressInterval {
				onMetric(value)
				lastReport = now
			}
			seen = true
		case <-window.C:
			if !seen && !p.Exited() {
				onMetric(fallback)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// Wait drains output and waits for the process to exit on its own until
// start plus the max runtime. Expiry or ctx cancellation stops it with
// SIGTERM, then SIGKILL after the terminate grace.
func (s *Supervisor) Wait(ctx context.Context, p *Process) Result {
	return s.waitWithin(ctx, p, s.timing.MaxRuntime)
}

func (s *Supervisor) waitWithin(ctx context.Context, p *Process, limit time.Duration) Result {
	go func() {
		for range p.Lines() {
		}
	}()

	deadline := time.NewTimer(time.Until(p.Started().Add(limit)))
	defer deadline.Stop()
	select {
	case <-p.Done():
	case <-deadline.C:
		s.logger.Warn("ffmpeg exceeded runtime limit; terminating",
			logging.Int("pid", p.PID()),
			logging.Duration("limit", limit),
		)
		p.terminate(s.timing.TerminateGrace, causeMaxRuntime)
	case <-ctx.Done():
		s.logger.Info("stopping ffmpeg for shutdown", logging.Int("pid", p.PID()))
		p.terminate(s.timing.TerminateGrace, causeShutdown)
	}

	res := p.result()
	s.logger.Debug("ffmpeg reaped",
		logging.Int("pid", p.PID()),
		logging.String("state", res.State.String()),
		logging.Int("exit_code", res.ExitCode),
		logging.Duration("duration", res.Duration),
		logging.Int("dropped_lines", res.Dropped),
	)
	return res
}

// Stop terminates p if it is still running. It is safe to call on a reaped
// process and is meant for deferred cleanup.
func (s *Supervisor) Stop(p *Process) {
	if p == nil || p.Exited() {
		return
	}
	p.terminate(s.timing.TerminateGrace, causeAborted)
}

// RunTransform transcodes input into output bounded by the transform timeout.
func (s *Supervisor) RunTransform(ctx context.Context, input, output string, maxHeight int) (Result, error) {
	p, err := s.Start(ctx, TransformArgs(input, output, maxHeight))
	if err != nil {
		return Result{}, err
	}
	res := s.waitWithin(ctx, p, s.timing.TransformTimeout)
	return res, res.Err()
}
