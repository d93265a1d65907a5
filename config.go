package goThrottle

import (
	"fmt"
	"time"
)

// Config defines the throttling policy of an [Engine].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Store     StoreConfig
	RateLimit RateLimitConfig
	Login     LoginConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls key naming and the failure stance of HTTP collaborators.
type StoreConfig struct {
	// KeyPrefix is prepended to every key. Engines sharing a prefix share counters.
	KeyPrefix string
	// FailOpen lets the middleware admit requests while the store is
	// unreachable. The engine itself always returns ErrStoreUnavailable.
	FailOpen bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds the defaults applied when a [RateLimitRequest] leaves
// MaxRequests or Window at zero.
type RateLimitConfig struct {
	DefaultMaxRequests int
	DefaultWindow      time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig defines the escalating login lockout policy.
type LoginConfig struct {
	// FailuresPerBlock is the number of failures that triggers one escalation step.
	FailuresPerBlock int
	// BlockSchedule lists lockout durations in escalation order. It must be
	// non-empty and non-decreasing; the last entry repeats indefinitely.
	BlockSchedule []time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops denial and failure events when the buffer is full.
	// Lockouts and resets always wait for space.
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultBlockSchedule is the escalation schedule used by [DefaultConfig]:
// 10s, 1m, 10m, 30m, 1h, 3h, 9h, 12h, 1d, 2d, 5d, 10d.
func DefaultBlockSchedule() []time.Duration {
	return []time.Duration{
		10 * time.Second,
		time.Minute,
		10 * time.Minute,
		30 * time.Minute,
		time.Hour,
		3 * time.Hour,
		9 * time.Hour,
		12 * time.Hour,
		24 * time.Hour,
		48 * time.Hour,
		120 * time.Hour,
		240 * time.Hour,
	}
}

// DefaultConfig returns a valid configuration: 10 requests per 60s window,
// a block every 3 failed logins, and [DefaultBlockSchedule].
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			KeyPrefix: "gt",
			FailOpen:  false,
		},
		RateLimit: RateLimitConfig{
			DefaultMaxRequests: 10,
			DefaultWindow:      60 * time.Second,
		},
		Login: LoginConfig{
			FailuresPerBlock: 3,
			BlockSchedule:    DefaultBlockSchedule(),
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Login.BlockSchedule = cloneDurations(cfg.Login.BlockSchedule)
	return out
}

func cloneDurations(d []time.Duration) []time.Duration {
	if len(d) == 0 {
		return nil
	}
	out := make([]time.Duration, len(d))
	copy(out, d)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns an error wrapping [ErrInvalidConfiguration] for an empty key prefix, a
// non-positive default cap, a default window shorter than one second, a non-positive failure
// threshold, or an empty, sub-second or decreasing block schedule.
// Validate does not mutate the receiver.
func (c *Config) Validate() error {
	// Store
	if c.Store.KeyPrefix == "" {
		return invalidConfig("Store KeyPrefix must not be empty")
	}

	// Rate limit
	if c.RateLimit.DefaultMaxRequests <= 0 {
		return invalidConfig("RateLimit DefaultMaxRequests must be > 0")
	}
	if c.RateLimit.DefaultWindow < time.Second {
		return invalidConfig("RateLimit DefaultWindow must be >= 1s")
	}

	// Login
	if c.Login.FailuresPerBlock <= 0 {
		return invalidConfig("Login FailuresPerBlock must be > 0")
	}
	if len(c.Login.BlockSchedule) == 0 {
		return invalidConfig("Login BlockSchedule must not be empty")
	}
	for i, d := range c.Login.BlockSchedule {
		if d < time.Second {
			return invalidConfig(fmt.Sprintf("Login BlockSchedule[%d] must be >= 1s", i))
		}
		if i > 0 && d < c.Login.BlockSchedule[i-1] {
			return invalidConfig("Login BlockSchedule must be non-decreasing")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalidConfig("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, msg)
}
