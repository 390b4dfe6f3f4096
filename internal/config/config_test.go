package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"streamworker/internal/config"
)

func clearWorkerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvQueueBaseURL, config.EnvQueueToken, config.EnvWorkerID,
		config.EnvPollInterval, config.EnvFFmpegBinary, config.EnvStoreEndpoint,
		config.EnvStoreAccessKey, config.EnvStoreSecretKey, config.EnvStoreBucket,
		config.EnvStoreBucketAlt, config.EnvStoreRegion, config.EnvStoreUseSSL,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvironmentOnly(t *testing.T) {
	clearWorkerEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvQueueBaseURL, " http://queue.local:8080/ ")
	t.Setenv(config.EnvQueueToken, "secret")
	t.Setenv(config.EnvWorkerID, "edge-7")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Queue.BaseURL != "http://queue.local:8080" {
		t.Fatalf("expected trimmed base url, got %q", cfg.Queue.BaseURL)
	}
	if cfg.Queue.Token != "secret" {
		t.Fatalf("unexpected token %q", cfg.Queue.Token)
	}
	if cfg.Worker.ID != "edge-7" {
		t.Fatalf("unexpected worker id %q", cfg.Worker.ID)
	}
	if cfg.Worker.PollInterval != 3 {
		t.Fatalf("expected default poll interval, got %d", cfg.Worker.PollInterval)
	}
	wantWork := filepath.Join(tempHome, ".local", "share", "streamworker", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Store.Bucket != "twitcher-videos" {
		t.Fatalf("unexpected default bucket %q", cfg.Store.Bucket)
	}
}

func TestLoadRequiresQueueSettings(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil || !strings.Contains(err.Error(), "queue.base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}

	t.Setenv(config.EnvQueueBaseURL, "http://queue.local")
	_, _, _, err = config.Load("")
	if err == nil || !strings.Contains(err.Error(), "queue.token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.toml")

	fileCfg := config.Default()
	fileCfg.Queue.BaseURL = "http://file.local"
	fileCfg.Queue.Token = "file-token"
	fileCfg.Store.Endpoint = "https://s3.example.com/"
	fileCfg.Store.AccessKey = "ak"
	fileCfg.Store.SecretKey = "sk"
	fileCfg.Worker.PollInterval = 9
	data, err := toml.Marshal(fileCfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(config.EnvQueueToken, "env-token")
	t.Setenv(config.EnvPollInterval, "1")
	t.Setenv(config.EnvStoreBucketAlt, "alt-bucket")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Queue.BaseURL != "http://file.local" {
		t.Fatalf("expected file base url, got %q", cfg.Queue.BaseURL)
	}
	if cfg.Queue.Token != "env-token" {
		t.Fatalf("expected env token to win, got %q", cfg.Queue.Token)
	}
	if cfg.Worker.PollInterval != 1 {
		t.Fatalf("expected env poll interval, got %d", cfg.Worker.PollInterval)
	}
	if cfg.Store.Bucket != "alt-bucket" {
		t.Fatalf("expected S3_BUCKET fallback, got %q", cfg.Store.Bucket)
	}
	if cfg.Store.Endpoint != "s3.example.com" || !cfg.Store.UseSSL {
		t.Fatalf("expected scheme stripped and TLS enabled, got %q ssl=%v", cfg.Store.Endpoint, cfg.Store.UseSSL)
	}
}

func TestLoadRejectsInvalidEnvValues(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvQueueBaseURL, "http://queue.local")
	t.Setenv(config.EnvQueueToken, "secret")
	t.Setenv(config.EnvPollInterval, "soon")

	if _, _, _, err := config.Load(""); err == nil || !strings.Contains(err.Error(), config.EnvPollInterval) {
		t.Fatalf("expected poll interval parse error, got %v", err)
	}
}

func TestValidateRejectsPartialStoreCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.BaseURL = "http://queue.local"
	cfg.Queue.Token = "secret"
	cfg.Store.Endpoint = "minio:9000"
	cfg.Store.AccessKey = "ak"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing secret key to fail validation")
	}
}

func TestValidateRejectsNonPositiveTimings(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.BaseURL = "http://queue.local"
	cfg.Queue.Token = "secret"
	cfg.FFmpeg.MaxRuntime = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "ffmpeg.max_runtime") {
		t.Fatalf("expected max_runtime error, got %v", err)
	}
}

func TestValidateRejectsNonHTTPBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.BaseURL = "ftp://queue.local"
	cfg.Queue.Token = "secret"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ftp scheme to be rejected")
	}
}

func TestSampleConfigParses(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	t.Setenv(config.EnvQueueToken, "secret")

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.FFmpeg.MaxRuntime != config.Default().FFmpeg.MaxRuntime {
		t.Fatalf("sample max_runtime drifted from defaults: %d", cfg.FFmpeg.MaxRuntime)
	}
}

func TestRedactedMasksCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.Token = "secret"
	cfg.Store.SecretKey = "sk"
	redacted := cfg.Redacted()
	if redacted.Queue.Token == "secret" || redacted.Store.SecretKey == "sk" {
		t.Fatal("expected credentials to be masked")
	}
	if redacted.Store.AccessKey != "" {
		t.Fatalf("expected empty access key to stay empty, got %q", redacted.Store.AccessKey)
	}
	if cfg.Queue.Token != "secret" {
		t.Fatal("Redacted must not mutate the receiver")
	}
}

func TestLockPathSanitizesWorkerID(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = "/state"
	cfg.Worker.ID = "edge/1 a"
	if got := cfg.LockPath(); got != "/state/streamworker-edge_1_a.lock" {
		t.Fatalf("unexpected lock path %q", got)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestLoadUnvalidatedAllowsMissingQueue(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, _, _, err := config.LoadUnvalidated("")
	if err != nil {
		t.Fatalf("LoadUnvalidated returned error: %v", err)
	}
	if cfg.Queue.BaseURL != "" {
		t.Fatalf("expected empty base url, got %q", cfg.Queue.BaseURL)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to still reject the config")
	}
}
