package lock

// ============================================================================
// Lock Manager Configuration
// ============================================================================

// Config contains behavior switches for the lock manager.
type Config struct {
	// StrictIntentCheck requires the IS/IX lock on a page's table to be held
	// by the requesting transaction itself. When false, an intent lock held
	// by any transaction on the table satisfies the check.
	// Default: false
	StrictIntentCheck bool `mapstructure:"strict_intent_check" yaml:"strict_intent_check" json:"strict_intent_check"`

	// PruneIdleState drops a resource's lock state as soon as a release
	// leaves it with no owners and no waiters.
	// Default: false
	PruneIdleState bool `mapstructure:"prune_idle_state" yaml:"prune_idle_state" json:"prune_idle_state"`
}

// DefaultConfig returns a Config with default settings.
func DefaultConfig() Config {
	return Config{
		StrictIntentCheck: false,
		PruneIdleState:    false,
	}
}
