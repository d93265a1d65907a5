package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goThrottle/internal/keys"
	"github.com/MrEthical07/goThrottle/internal/stores"
)

var (
	// ErrLockoutUnavailable indicates the lockout store is unreachable.
	ErrLockoutUnavailable = errors.New("lockout store unavailable")
	// ErrInvalidLockoutConfig is returned by [NewLoginThrottle] for unusable policies.
	ErrInvalidLockoutConfig = errors.New("invalid lockout config")
	// ErrInvalidLockoutRequest is returned for an empty subject or client.
	ErrInvalidLockoutRequest = errors.New("invalid lockout request")
)

// LockoutConfig holds the escalation policy of the login throttle.
type LockoutConfig struct {
	// Threshold is the number of failures per escalation step.
	Threshold int
	// Schedule lists block durations in escalation order. Failures past the
	// end of the schedule reuse the last entry.
	Schedule []time.Duration
}

// Validate rejects a non-positive threshold and an empty, non-positive or
// decreasing schedule.
func (c LockoutConfig) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: threshold must be > 0", ErrInvalidLockoutConfig)
	}
	if len(c.Schedule) == 0 {
		return fmt.Errorf("%w: schedule must not be empty", ErrInvalidLockoutConfig)
	}
	for i, d := range c.Schedule {
		if d < time.Second {
			return fmt.Errorf("%w: schedule[%d] must be at least 1s", ErrInvalidLockoutConfig, i)
		}
		if i > 0 && d < c.Schedule[i-1] {
			return fmt.Errorf("%w: schedule must be non-decreasing", ErrInvalidLockoutConfig)
		}
	}
	return nil
}

// Status is the result of [LoginThrottle.Evaluate]. A zero RetryAfter means
// the pair is not currently blocked.
type Status struct {
	FailedCount   int64
	RetryAfter    time.Duration
	BlockDuration time.Duration
}

// Blocked reports whether a block is active.
func (s Status) Blocked() bool {
	return s.RetryAfter > 0
}

// Failure is the result of [LoginThrottle.RecordFailure].
type Failure struct {
	FailedCount int64
	// BlockApplied is set when this failure crossed a threshold multiple.
	BlockApplied  bool
	BlockDuration time.Duration
}

// LoginThrottle tracks cumulative failed logins per (subject, client) pair
// and applies escalating blocks.
type LoginThrottle struct {
	store  stores.Store
	keys   keys.Space
	config LockoutConfig
}

// NewLoginThrottle creates a login throttle. The schedule is copied.
func NewLoginThrottle(store stores.Store, space keys.Space, cfg LockoutConfig) (*LoginThrottle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Schedule = append([]time.Duration(nil), cfg.Schedule...)
	return &LoginThrottle{store: store, keys: space, config: cfg}, nil
}

// Evaluate reports whether the pair is blocked. The failure counter and the
// block TTL are read in one round trip.
func (l *LoginThrottle) Evaluate(ctx context.Context, subject, client string) (Status, error) {
	if subject == "" || client == "" {
		return Status{}, ErrInvalidLockoutRequest
	}

	count, ttl, err := l.store.ReadCounter(ctx, l.keys.Failed(subject, client), l.keys.Block(subject, client))
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	status := Status{FailedCount: count}
	if count < int64(l.config.Threshold) {
		return status, nil
	}

	status.BlockDuration = l.blockFor(count)
	if ttl > 0 {
		status.RetryAfter = ceilSeconds(ttl)
	}
	return status, nil
}

// RecordFailure increments the failure counter. When the new count is an
// exact multiple of the threshold a block is written with the scheduled
// duration. Both happen in one store script, so a block for a lower tier can
// never land after a higher one.
func (l *LoginThrottle) RecordFailure(ctx context.Context, subject, client string) (Failure, error) {
	if subject == "" || client == "" {
		return Failure{}, ErrInvalidLockoutRequest
	}

	res, err := l.store.RecordFailure(ctx,
		l.keys.Failed(subject, client),
		l.keys.Block(subject, client),
		int64(l.config.Threshold),
		l.config.Schedule,
	)
	if err != nil {
		return Failure{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	return Failure{
		FailedCount:   res.Count,
		BlockApplied:  res.Block > 0,
		BlockDuration: res.Block,
	}, nil
}

// Reset deletes the failure counter and block of one pair.
func (l *LoginThrottle) Reset(ctx context.Context, subject, client string) error {
	if subject == "" || client == "" {
		return ErrInvalidLockoutRequest
	}

	if _, err := l.store.Delete(ctx, l.keys.Failed(subject, client), l.keys.Block(subject, client)); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// ResetSubject deletes every failure counter and block of subject across
// all clients and returns the number of keys removed.
func (l *LoginThrottle) ResetSubject(ctx context.Context, subject string) (int64, error) {
	if subject == "" {
		return 0, ErrInvalidLockoutRequest
	}

	var found []string
	for _, pattern := range []string{l.keys.SubjectFailed(subject), l.keys.SubjectBlocks(subject)} {
		matched, err := l.store.Keys(ctx, pattern)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
		found = append(found, matched...)
	}
	if len(found) == 0 {
		return 0, nil
	}

	deleted, err := l.store.Delete(ctx, found...)
	if err != nil {
		return deleted, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return deleted, nil
}

// blockFor returns the schedule entry for count, clamped to the last entry.
func (l *LoginThrottle) blockFor(count int64) time.Duration {
	idx := count/int64(l.config.Threshold) - 1
	if last := int64(len(l.config.Schedule) - 1); idx > last {
		idx = last
	}
	if idx < 0 {
		idx = 0
	}
	return l.config.Schedule[idx]
}

func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}
