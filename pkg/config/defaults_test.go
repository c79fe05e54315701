package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_Empty(t *testing.T) {
	t.Parallel()

	var cfg Config
	ApplyDefaults(&cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "mglock", cfg.Metrics.Namespace)
	assert.Equal(t, DefaultReplayTimeout, cfg.Replay.Timeout)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Logging: LoggingConfig{Level: "warn", Format: "json", Output: "/tmp/mglock.log"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "custom"},
		Replay:  ReplayConfig{Timeout: time.Second},
	}
	ApplyDefaults(&cfg)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/mglock.log", cfg.Logging.Output)
	assert.Equal(t, "custom", cfg.Metrics.Namespace)
	assert.Equal(t, time.Second, cfg.Replay.Timeout)
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Lock.StrictIntentCheck)
	assert.False(t, cfg.Lock.PruneIdleState)
}
