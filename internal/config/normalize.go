package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables recognised by the worker. They override values read
// from the config file so container deployments can stay file-less.
const (
	EnvQueueBaseURL   = "API_BASE"
	EnvQueueToken     = "WORKER_TOKEN"
	EnvWorkerID       = "WORKER_ID"
	EnvPollInterval   = "POLL_INTERVAL"
	EnvFFmpegBinary   = "FFMPEG_BINARY"
	EnvStoreEndpoint  = "S3_ENDPOINT"
	EnvStoreAccessKey = "S3_ACCESS_KEY"
	EnvStoreSecretKey = "S3_SECRET_KEY"
	EnvStoreBucket    = "S3_BUCKET_NAME"
	EnvStoreBucketAlt = "S3_BUCKET"
	EnvStoreRegion    = "S3_REGION"
	EnvStoreUseSSL    = "S3_USE_SSL"
)

func (c *Config) applyEnv() error {
	if value, ok := lookupEnv(EnvQueueBaseURL); ok {
		c.Queue.BaseURL = value
	}
	if value, ok := lookupEnv(EnvQueueToken); ok {
		c.Queue.Token = value
	}
	if value, ok := lookupEnv(EnvWorkerID); ok {
		c.Worker.ID = value
	}
	if value, ok := lookupEnv(EnvPollInterval); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer number of seconds", EnvPollInterval, value)
		}
		c.Worker.PollInterval = parsed
	}
	if value, ok := lookupEnv(EnvFFmpegBinary); ok {
		c.FFmpeg.Binary = value
	}
	if value, ok := lookupEnv(EnvStoreEndpoint); ok {
		c.Store.Endpoint = value
	}
	if value, ok := lookupEnv(EnvStoreAccessKey); ok {
		c.Store.AccessKey = value
	}
	if value, ok := lookupEnv(EnvStoreSecretKey); ok {
		c.Store.SecretKey = value
	}
	if value, ok := lookupEnv(EnvStoreBucket); ok {
		c.Store.Bucket = value
	} else if value, ok := lookupEnv(EnvStoreBucketAlt); ok {
		c.Store.Bucket = value
	}
	if value, ok := lookupEnv(EnvStoreRegion); ok {
		c.Store.Region = value
	}
	if value, ok := lookupEnv(EnvStoreUseSSL); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", EnvStoreUseSSL, value)
		}
		c.Store.UseSSL = parsed
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeStore()
	c.normalizeWorker()
	c.normalizeFFmpeg()
	c.normalizeTransform()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeQueue() {
	// The queue owner historically configured API_BASE with stray whitespace
	// and an optional trailing slash.
	c.Queue.BaseURL = strings.TrimRight(strings.TrimSpace(c.Queue.BaseURL), "/")
	c.Queue.Token = strings.TrimSpace(c.Queue.Token)
	c.Queue.NextPath = normalizeEndpointPath(c.Queue.NextPath, defaultNextPath)
	c.Queue.CallbackPath = normalizeEndpointPath(c.Queue.CallbackPath, defaultCallbackPath)
	c.Queue.HealthPath = normalizeEndpointPath(c.Queue.HealthPath, defaultHealthPath)
	if c.Queue.RequestTimeout <= 0 {
		c.Queue.RequestTimeout = defaultQueueRequestTimeout
	}
	if c.Queue.RetryAttempts <= 0 {
		c.Queue.RetryAttempts = defaultQueueRetryAttempts
	}
	if c.Queue.RetryDelay < 0 {
		c.Queue.RetryDelay = 0
	}
}

func normalizeEndpointPath(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return value
}

func (c *Config) normalizeStore() {
	endpoint := strings.TrimSpace(c.Store.Endpoint)
	// minio-go wants host[:port]; the scheme only selects TLS.
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
		c.Store.UseSSL = true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		c.Store.UseSSL = false
	}
	c.Store.Endpoint = strings.TrimRight(endpoint, "/")
	c.Store.AccessKey = strings.TrimSpace(c.Store.AccessKey)
	c.Store.SecretKey = strings.TrimSpace(c.Store.SecretKey)
	c.Store.Bucket = strings.TrimSpace(c.Store.Bucket)
	if c.Store.Bucket == "" {
		c.Store.Bucket = defaultStoreBucket
	}
	c.Store.Region = strings.TrimSpace(c.Store.Region)
	if c.Store.Region == "" {
		c.Store.Region = defaultStoreRegion
	}
	if c.Store.RequestTimeout <= 0 {
		c.Store.RequestTimeout = defaultStoreRequestTimeout
	}
}

func (c *Config) normalizeWorker() {
	c.Worker.ID = strings.TrimSpace(c.Worker.ID)
	if c.Worker.ID == "" {
		c.Worker.ID = defaultWorkerID
	}
	if c.Worker.CrashCooldown <= 0 {
		c.Worker.CrashCooldown = defaultCrashCooldown
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	if c.FFmpeg.LogTailLines <= 0 {
		c.FFmpeg.LogTailLines = defaultLogTailLines
	}
	if c.FFmpeg.TerminateGrace <= 0 {
		c.FFmpeg.TerminateGrace = defaultTerminateGrace
	}
}

func (c *Config) normalizeTransform() {
	c.Transform.ContentType = strings.TrimSpace(c.Transform.ContentType)
	if c.Transform.ContentType == "" {
		c.Transform.ContentType = defaultTransformContentType
	}
	if c.Transform.MaxHeight <= 0 {
		c.Transform.MaxHeight = defaultTransformMaxHeight
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
