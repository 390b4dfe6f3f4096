package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"streamworker/internal/config"
	"streamworker/internal/testsupport"
)

const ffmpegStub = `case "$2" in
  -version) echo "ffmpeg version 7.0-test" ;;
  -encoders) printf ' V....D libx264  H.264\n A....D aac  AAC\n' ;;
esac
exit 0
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	clearWorkerEnv(t)
	opts = append([]testsupport.ConfigOption{testsupport.WithFFmpegScript(ffmpegStub)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

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

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
