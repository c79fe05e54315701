package config

import (
	"strings"
	"time"

	"github.com/marmos91/mglock/pkg/lock"
)

// DefaultReplayTimeout bounds a replay when the configuration leaves it unset.
const DefaultReplayTimeout = 30 * time.Second

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyReplayDefaults(&cfg.Replay)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	// stdout carries command output, so logs go to stderr.
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Namespace == "" {
		cfg.Namespace = lock.DefaultMetricsNamespace
	}
}

func applyReplayDefaults(cfg *ReplayConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultReplayTimeout
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	defaults := lock.DefaultConfig()

	cfg := &Config{
		Lock: LockConfig{
			StrictIntentCheck: defaults.StrictIntentCheck,
			PruneIdleState:    defaults.PruneIdleState,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
