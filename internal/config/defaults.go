package config

const (
	defaultConfigPath           = "~/.config/streamworker/config.toml"
	defaultNextPath             = "/api/worker/next"
	defaultCallbackPath         = "/api/worker/callback"
	defaultHealthPath           = "/api/worker/health"
	defaultQueueRequestTimeout  = 30
	defaultQueueRetryAttempts   = 3
	defaultQueueRetryDelay      = 5
	defaultStoreRegion          = "us-east-1"
	defaultStoreBucket          = "twitcher-videos"
	defaultStoreRequestTimeout  = 60
	defaultWorkerID             = "py-1"
	defaultPollInterval         = 3
	defaultCrashCooldown        = 10
	defaultFFmpegBinary         = "ffmpeg"
	defaultStartupGrace         = 2
	defaultProgressInterval     = 10
	defaultMonitorWindow        = 30
	defaultMaxRuntime           = 300
	defaultTerminateGrace       = 5
	defaultTransformTimeout     = 3600
	defaultLogTailLines         = 10
	defaultProbeAttempts        = 2
	defaultProbeDelay           = 1
	defaultTransformMaxHeight   = 720
	defaultTransformContentType = "video/mp4"
	defaultWorkDir              = "~/.local/share/streamworker/work"
	defaultStateDir             = "~/.local/share/streamworker/state"
	defaultLogDir               = "~/.local/share/streamworker/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultPreflightEnabled     = true
	defaultStreamProbeSource    = true
	defaultPreflightStrict      = false
	defaultStoreUseSSL          = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Queue: Queue{
			NextPath:       defaultNextPath,
			CallbackPath:   defaultCallbackPath,
			HealthPath:     defaultHealthPath,
			RequestTimeout: defaultQueueRequestTimeout,
			RetryAttempts:  defaultQueueRetryAttempts,
			RetryDelay:     defaultQueueRetryDelay,
		},
		Store: Store{
			Bucket:         defaultStoreBucket,
			Region:         defaultStoreRegion,
			UseSSL:         defaultStoreUseSSL,
			RequestTimeout: defaultStoreRequestTimeout,
		},
		Worker: Worker{
			ID:            defaultWorkerID,
			PollInterval:  defaultPollInterval,
			CrashCooldown: defaultCrashCooldown,
		},
		FFmpeg: FFmpeg{
			Binary:           defaultFFmpegBinary,
			StartupGrace:     defaultStartupGrace,
			ProgressInterval: defaultProgressInterval,
			MonitorWindow:    defaultMonitorWindow,
			MaxRuntime:       defaultMaxRuntime,
			TerminateGrace:   defaultTerminateGrace,
			TransformTimeout: defaultTransformTimeout,
			LogTailLines:     defaultLogTailLines,
		},
		Stream: Stream{
			ProbeSource:   defaultStreamProbeSource,
			ProbeAttempts: defaultProbeAttempts,
			ProbeDelay:    defaultProbeDelay,
		},
		Transform: Transform{
			MaxHeight:   defaultTransformMaxHeight,
			ContentType: defaultTransformContentType,
		},
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Preflight: Preflight{
			Enabled: defaultPreflightEnabled,
			Strict:  defaultPreflightStrict,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
