package writeback

import (
	"fmt"
	"time"
)

// Config holds the runtime configuration of a Coordinator.
type Config struct {
	// Enabled is the master switch. When false, events are ignored and no
	// new flush starts. A save already in progress runs to completion.
	Enabled bool `mapstructure:"enabled" toml:"enabled"`

	// LoggingEnabled turns on diagnostic tracing. It has no behavioral effect.
	LoggingEnabled bool `mapstructure:"logging_enabled" toml:"logging_enabled"`

	// DebounceDelay is the quiet period after the last relevant event before
	// a flush fires. Zero fires on the next timer tick without coalescing.
	DebounceDelay time.Duration `mapstructure:"debounce_delay" toml:"debounce_delay"`

	// WatchedEventKinds is the allowlist of event kinds that trigger a flush.
	WatchedEventKinds []EventKind `mapstructure:"watched_event_kinds" toml:"watched_event_kinds"`

	// RetryEnabled allows failed saves to be re-attempted.
	RetryEnabled bool `mapstructure:"retry_enabled" toml:"retry_enabled"`

	// MaxRetries bounds re-attempts; one flush makes at most 1+MaxRetries saves.
	MaxRetries int `mapstructure:"max_retries" toml:"max_retries"`

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay" toml:"retry_delay"`
}

// DefaultConfig returns sensible defaults.
//
// The allowlist is empty: callers decide which event kinds matter.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		LoggingEnabled: false,
		DebounceDelay:  500 * time.Millisecond,
		RetryEnabled:   true,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.DebounceDelay < 0 {
		return fmt.Errorf("debounce delay must not be negative, got %v", c.DebounceDelay)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %v", c.RetryDelay)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	out := c
	if c.WatchedEventKinds != nil {
		out.WatchedEventKinds = append([]EventKind(nil), c.WatchedEventKinds...)
	}
	return out
}

// Watches reports whether kind is in the allowlist.
func (c Config) Watches(kind EventKind) bool {
	for _, k := range c.WatchedEventKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (c Config) retryPolicy() RetryPolicy {
	return RetryPolicy{
		Enabled:    c.RetryEnabled,
		MaxRetries: c.MaxRetries,
		Delay:      c.RetryDelay,
	}
}

// ConfigPatch is a partial Config. Nil fields are left unchanged by Merge.
type ConfigPatch struct {
	Enabled        *bool
	LoggingEnabled *bool
	DebounceDelay  *time.Duration

	// WatchedEventKinds replaces the allowlist when non-nil. An empty,
	// non-nil slice clears it.
	WatchedEventKinds []EventKind

	RetryEnabled *bool
	MaxRetries   *int
	RetryDelay   *time.Duration
}

// Merge returns a copy of c with every non-nil field of p applied.
func (c Config) Merge(p ConfigPatch) Config {
	out := c.Clone()
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.LoggingEnabled != nil {
		out.LoggingEnabled = *p.LoggingEnabled
	}
	if p.DebounceDelay != nil {
		out.DebounceDelay = *p.DebounceDelay
	}
	if p.WatchedEventKinds != nil {
		out.WatchedEventKinds = append([]EventKind{}, p.WatchedEventKinds...)
	}
	if p.RetryEnabled != nil {
		out.RetryEnabled = *p.RetryEnabled
	}
	if p.MaxRetries != nil {
		out.MaxRetries = *p.MaxRetries
	}
	if p.RetryDelay != nil {
		out.RetryDelay = *p.RetryDelay
	}
	return out
}

// PatchFrom builds a patch that replaces every field with the values of c.
// It is used when a whole configuration is reloaded from disk.
func PatchFrom(c Config) ConfigPatch {
	kinds := c.WatchedEventKinds
	if kinds == nil {
		kinds = []EventKind{}
	}
	return ConfigPatch{
		Enabled:           Bool(c.Enabled),
		LoggingEnabled:    Bool(c.LoggingEnabled),
		DebounceDelay:     Duration(c.DebounceDelay),
		WatchedEventKinds: kinds,
		RetryEnabled:      Bool(c.RetryEnabled),
		MaxRetries:        Int(c.MaxRetries),
		RetryDelay:        Duration(c.RetryDelay),
	}
}

// Bool returns a pointer to v, for building a ConfigPatch.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v, for building a ConfigPatch.
func Int(v int) *int { return &v }

// Duration returns a pointer to d, for building a ConfigPatch.
func Duration(d time.Duration) *time.Duration { return &d }
