package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"streamworker/internal/ffmpeg"
	"streamworker/internal/job"
	"streamworker/internal/logging"
	"streamworker/internal/objectstore"
	"streamworker/internal/services"
)

func (d *Dispatcher) runStream(ctx context.Context, j job.StreamJob, rep *reporter, logger *slog.Logger) {
	rep.markActive(ctx)

	input, cleanup, err := d.resolveStreamInput(ctx, j, logger)
	defer cleanup()
	if err != nil {
		rep.fail(ctx, err)
		return
	}

	p, err := d.media.StartStream(ctx, j, input)
	if err != nil {
		var startup *ffmpeg.StartupError
		if errors.As(err, &startup) {
			err = services.WithHint(err, streamStartHint)
		}
		rep.fail(ctx, err)
		return
	}
	defer d.media.Stop(p)

	logger.Info("stream running",
		logging.String(logging.FieldEventType, "stream_running"),
		logging.Int("pid", p.PID()),
		logging.Int("target_kbps", j.VideoKbps),
		logging.Bool("loop", j.Loop),
	)
	d.media.Monitor(ctx, p, float64(j.VideoKbps), func(bitrate float64) {
		rep.progress(ctx, bitrate)
	})

	res := d.media.Wait(ctx, p)
	if err := res.Err(); err != nil {
		rep.fail(ctx, err)
		return
	}
	rep.completed(ctx, "")
}

// resolveStreamInput picks what ffmpeg reads. A reachable direct locator is
// used as-is. Otherwise the object is fetched by key into a job-owned temp
// directory that the returned cleanup removes.
func (d *Dispatcher) resolveStreamInput(ctx context.Context, j job.StreamJob, logger *slog.Logger) (string, func(), error) {
	noop := func() {}
	if !d.probeSource {
		return j.SourceURL, noop, nil
	}
	probe := d.store.Probe(ctx, j.SourceURL)
	if probe.Reachable {
		return j.SourceURL, noop, nil
	}

	key := j.SourceKey
	if key == "" {
		key, _ = objectstore.KeyFromLocator(j.SourceURL, d.store.Bucket())
	}
	probeErr := probeFailure(j.SourceURL, probe)
	if key == "" || !d.store.Configured() {
		return "", noop, probeErr
	}

	logging.WarnWithContext(logger, "source locator unreachable; downloading by key", "source_fallback_download",
		logging.Int("status_code", probe.StatusCode),
		logging.String("key", key),
		logging.String(logging.FieldErrorHint, services.Hint(probeErr)),
		logging.String(logging.FieldImpact, "stream starts after a full download"),
	)
	dir, err := d.jobDir("stream", j.JobID)
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { removeDir(dir, logger) }
	local := filepath.Join(dir, "source"+path.Ext(key))
	if err := d.store.Download(ctx, key, local); err != nil {
		return "", cleanup, err
	}
	return local, cleanup, nil
}

func (d *Dispatcher) jobDir(kind, jobID string) (string, error) {
	if err := os.MkdirAll(d.workDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "dispatch", "prepare work dir", d.workDir, err)
	}
	dir, err := os.MkdirTemp(d.workDir, kind+"-"+safeName(jobID)+"-")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "dispatch", "prepare work dir", d.workDir, err)
	}
	return dir, nil
}

func removeDir(dir string, logger *slog.Logger) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("temp files not removed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "cleanup_failed"),
		)
	}
}

func safeName(value string) string {
	out := make([]rune, 0, len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "job"
	}
	if len(out) > 40 {
		out = out[:40]
	}
	return string(out)
}
