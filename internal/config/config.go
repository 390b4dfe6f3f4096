package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Queue contains connection settings for the remote job queue API.
type Queue struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	NextPath       string `toml:"next_path"`
	CallbackPath   string `toml:"callback_path"`
	HealthPath     string `toml:"health_path"`
	RequestTimeout int    `toml:"request_timeout"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryDelay     int    `toml:"retry_delay"`
}

// Store contains S3-compatible object store settings.
type Store struct {
	Endpoint       string `toml:"endpoint"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Bucket         string `toml:"bucket"`
	Region         string `toml:"region"`
	UseSSL         bool   `toml:"use_ssl"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Worker contains identity and loop timing.
type Worker struct {
	ID            string `toml:"id"`
	PollInterval  int    `toml:"poll_interval"`
	CrashCooldown int    `toml:"crash_cooldown"`
}

// FFmpeg contains media tool supervision settings. All durations are seconds.
type FFmpeg struct {
	Binary           string `toml:"binary"`
	StartupGrace     int    `toml:"startup_grace"`
	ProgressInterval int    `toml:"progress_interval"`
	MonitorWindow    int    `toml:"monitor_window"`
	MaxRuntime       int    `toml:"max_runtime"`
	TerminateGrace   int    `toml:"terminate_grace"`
	TransformTimeout int    `toml:"transform_timeout"`
	LogTailLines     int    `toml:"log_tail_lines"`
}

// Stream contains STREAM job behaviour.
type Stream struct {
	ProbeSource   bool `toml:"probe_source"`
	ProbeAttempts int  `toml:"probe_attempts"`
	ProbeDelay    int  `toml:"probe_delay"`
}

// Transform contains TRANSFORM job behaviour.
type Transform struct {
	MaxHeight   int    `toml:"max_height"`
	ContentType string `toml:"content_type"`
}

// Paths contains working and state directories.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Preflight controls the one-time startup checks.
type Preflight struct {
	Enabled bool `toml:"enabled"`
	Strict  bool `toml:"strict"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the worker.
//
// Configuration sections by subsystem:
//   - Queue: remote queue API base URL, bearer token, retry ceiling
//   - Store: S3 endpoint, static credentials, bucket
//   - Worker: identity and polling cadence
//   - FFmpeg: media tool binary and supervision timeouts
//   - Stream / Transform: per-kind job behaviour
//   - Paths: temp work files, lock/ledger state, logs
//   - Preflight: startup checks
//   - Logging: log format and level
type Config struct {
	Queue     Queue     `toml:"queue"`
	Store     Store     `toml:"store"`
	Worker    Worker    `toml:"worker"`
	FFmpeg    FFmpeg    `toml:"ffmpeg"`
	Stream    Stream    `toml:"stream"`
	Transform Transform `toml:"transform"`
	Paths     Paths     `toml:"paths"`
	Preflight Preflight `toml:"preflight"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file, then applies
// environment overrides. A missing file is not an error: the worker is
// commonly configured from the environment alone.
func Load(path string) (*Config, string, bool, error) {
	cfg, resolvedPath, exists, err := LoadUnvalidated(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

// LoadUnvalidated behaves like Load but skips validation, so incomplete
// settings can still be inspected.
func LoadUnvalidated(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("streamworker.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work, state, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the media tool executable name or path.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.Binary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// LedgerPath returns the job ledger database location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the single-instance lock file for this worker identity.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, fmt.Sprintf("streamworker-%s.lock", sanitizeFileComponent(c.Worker.ID)))
}

// PollInterval returns the idle delay between empty queue polls.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Worker.PollInterval)
}

// CrashCooldown returns the delay after a fault escapes the job boundary.
func (c *Config) CrashCooldown() time.Duration {
	return seconds(c.Worker.CrashCooldown)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy with credentials masked for display.
func (c Config) Redacted() Config {
	c.Queue.Token = mask(c.Queue.Token)
	c.Store.AccessKey = mask(c.Store.AccessKey)
	c.Store.SecretKey = mask(c.Store.SecretKey)
	return c
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func sanitizeFileComponent(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
