package dispatch

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"streamworker/internal/job"
	"streamworker/internal/logging"
	"streamworker/internal/services"
)

func (d *Dispatcher) runTransform(ctx context.Context, j job.TransformJob, rep *reporter, logger *slog.Logger) {
	rep.markActive(ctx)

	if !d.store.Configured() {
		rep.fail(ctx, services.WithHint(
			services.Wrap(services.ErrConfiguration, "dispatch", "transform", "object store is not configured", nil),
			"set S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY to run TRANSFORM jobs",
		))
		return
	}

	dir, err := d.jobDir("transform", j.JobID)
	if err != nil {
		rep.fail(ctx, err)
		return
	}
	defer removeDir(dir, logger)

	input := filepath.Join(dir, "input"+path.Ext(j.InputKey))
	output := filepath.Join(dir, "output.mp4")

	start := time.Now()
	if err := d.store.Download(ctx, j.InputKey, input); err != nil {
		rep.fail(ctx, err)
		return
	}
	logger.Info("transform input downloaded",
		logging.String("key", j.InputKey),
		logging.Duration("duration", time.Since(start)),
	)

	maxHeight := j.MaxHeight
	if maxHeight <= 0 {
		maxHeight = d.maxHeight
	}
	res, err := d.media.RunTransform(ctx, input, output, maxHeight)
	if err != nil {
		rep.fail(ctx, err)
		return
	}
	logger.Info("transcode finished",
		logging.Int("max_height", maxHeight),
		logging.Duration("duration", res.Duration),
	)

	if err := d.store.Upload(ctx, output, j.OutputKey, d.contentType); err != nil {
		rep.fail(ctx, err)
		return
	}
	rep.completed(ctx, j.OutputKey)
}
