package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
metrics:
  enabled: true
  namespace: locks_test
lock:
  strict_intent_check: true
replay:
  timeout: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "locks_test", cfg.Metrics.Namespace)
	assert.True(t, cfg.Lock.StrictIntentCheck)
	assert.False(t, cfg.Lock.PruneIdleState)
	assert.Equal(t, 5*time.Second, cfg.Replay.Timeout)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "replay:\n  timeout: soon\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "logging:\n  format: xml\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "Logging.Format")
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("MGLOCK_LOGGING_LEVEL", "ERROR")
	t.Setenv("MGLOCK_LOCK_PRUNE_IDLE_STATE", "true")
	t.Setenv("MGLOCK_REPLAY_TIMEOUT", "1m")

	path := writeConfig(t, "logging:\n  level: INFO\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.Logging.Level)
	assert.True(t, cfg.Lock.PruneIdleState)
	assert.Equal(t, time.Minute, cfg.Replay.Timeout)
}

func TestLoad_EnvironmentWithoutFile(t *testing.T) {
	t.Setenv("MGLOCK_LOCK_STRICT_INTENT_CHECK", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Lock.StrictIntentCheck)
}

func TestMustLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := MustLoad(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mglock config init --config "+path)
}

func TestMustLoad_MissingDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := MustLoad("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration file found")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultConfig()
	cfg.Lock.StrictIntentCheck = true
	cfg.Replay.Timeout = 90 * time.Second
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLockConfig(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultConfig()
	cfg.Lock.StrictIntentCheck = true
	cfg.Lock.PruneIdleState = true

	lc := cfg.LockConfig()
	assert.True(t, lc.StrictIntentCheck)
	assert.True(t, lc.PruneIdleState)
}

func TestGetDefaultConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, filepath.Join(dir, "mglock"), GetConfigDir())
	assert.Equal(t, filepath.Join(dir, "mglock", "config.yaml"), GetDefaultConfigPath())
	assert.False(t, DefaultConfigExists())
}
