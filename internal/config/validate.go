package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	if strings.TrimSpace(c.Queue.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("queue.base_url is required. Set %s env var or edit %s (create with 'streamworker config init')", EnvQueueBaseURL, defaultPath)
	}
	parsed, err := url.Parse(c.Queue.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("queue.base_url %q must be an absolute http(s) URL", c.Queue.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("queue.base_url %q must use http or https", c.Queue.BaseURL)
	}
	if strings.TrimSpace(c.Queue.Token) == "" {
		return fmt.Errorf("queue.token is required. Set %s env var", EnvQueueToken)
	}
	return nil
}

func (c *Config) validateStore() error {
	if strings.TrimSpace(c.Store.Endpoint) == "" {
		// Without a store the worker can still run STREAM jobs from
		// pre-signed locators; TRANSFORM jobs fail at execution time.
		return nil
	}
	if c.Store.AccessKey == "" || c.Store.SecretKey == "" {
		return errors.New("store.access_key and store.secret_key must be set when store.endpoint is configured")
	}
	return nil
}

func (c *Config) validateTimings() error {
	if err := ensurePositiveMap(map[string]int{
		"worker.poll_interval":     c.Worker.PollInterval,
		"ffmpeg.progress_interval": c.FFmpeg.ProgressInterval,
		"ffmpeg.monitor_window":    c.FFmpeg.MonitorWindow,
		"ffmpeg.max_runtime":       c.FFmpeg.MaxRuntime,
		"ffmpeg.transform_timeout": c.FFmpeg.TransformTimeout,
		"queue.request_timeout":    c.Queue.RequestTimeout,
		"store.request_timeout":    c.Store.RequestTimeout,
		"transform.max_height":     c.Transform.MaxHeight,
		"ffmpeg.log_tail_lines":    c.FFmpeg.LogTailLines,
		"ffmpeg.terminate_grace":   c.FFmpeg.TerminateGrace,
		"worker.crash_cooldown":    c.Worker.CrashCooldown,
		"queue.retry_attempts":     c.Queue.RetryAttempts,
	}); err != nil {
		return err
	}
	if c.FFmpeg.StartupGrace < 0 {
		return errors.New("ffmpeg.startup_grace must be >= 0")
	}
	if c.Stream.ProbeAttempts < 0 {
		return errors.New("stream.probe_attempts must be >= 0")
	}
	if c.FFmpeg.StartupGrace >= c.FFmpeg.MaxRuntime {
		return errors.New("ffmpeg.max_runtime must be greater than ffmpeg.startup_grace")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
