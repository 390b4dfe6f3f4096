package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"streamworker/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Queue settings point at an unroutable placeholder until WithQueueURL is used.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Queue.BaseURL = "http://127.0.0.1:1"
	cfgVal.Queue.Token = "test-token"
	cfgVal.Queue.RetryDelay = 0
	cfgVal.Worker.ID = "test-worker"
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithQueueURL points the queue client at url, typically an httptest server.
func WithQueueURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.BaseURL = url
	}
}

// WithStore configures object store credentials for endpoint.
func WithStore(endpoint, bucket string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Endpoint = endpoint
		b.cfg.Store.Bucket = bucket
		b.cfg.Store.AccessKey = "test-access"
		b.cfg.Store.SecretKey = "test-secret"
	}
}

// WithFFmpegScript writes a shell script standing in for ffmpeg and points
// the config at it. body runs under /bin/sh with the ffmpeg argv as "$@".
func WithFFmpegScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FFmpeg.Binary = writeScript(b.t, filepath.Join(b.baseDir, "bin"), "ffmpeg", body)
	}
}

func writeScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
