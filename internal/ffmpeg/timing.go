package ffmpeg

import (
	"time"

	"streamworker/internal/config"
)

// Timing bounds each supervision phase.
type Timing struct {
	StartupGrace     time.Duration
	ProgressInterval time.Duration
	MonitorWindow    time.Duration
	MaxRuntime       time.Duration
	TerminateGrace   time.Duration
	TransformTimeout time.Duration
	TailLines        int
}

// TimingFromConfig converts the second-granularity config values.
func TimingFromConfig(cfg config.FFmpeg) Timing {
	return Timing{
		StartupGrace:     secs(cfg.StartupGrace),
		ProgressInterval: secs(cfg.ProgressInterval),
		MonitorWindow:    secs(cfg.MonitorWindow),
		MaxRuntime:       secs(cfg.MaxRuntime),
		TerminateGrace:   secs(cfg.TerminateGrace),
		TransformTimeout: secs(cfg.TransformTimeout),
		TailLines:        cfg.LogTailLines,
	}
}

func secs(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}
