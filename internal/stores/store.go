package stores

import (
	"context"
	"time"

	"github.com/zeebo/errs"
)

// Error classifies every failure returned by the store adapter.
var Error = errs.Class("store")

const (
	// Missing is returned by [Store.TTL] when the key does not exist.
	Missing time.Duration = -2
	// NoExpiry is returned by [Store.TTL] when the key exists without a TTL.
	NoExpiry time.Duration = -1
)

// WindowResult is the outcome of one atomic fixed-window evaluation.
type WindowResult struct {
	Allowed bool
	// Count is the counter value after the evaluation.
	Count int64
	// CreatedAt is the start of the window the counter belongs to.
	CreatedAt time.Time
	// BlockedAt is the block marker timestamp; zero when Allowed.
	BlockedAt time.Time
	// BlockStarted reports whether this evaluation created the block marker.
	BlockStarted bool
}

// FailureResult is the outcome of one atomic failed-login update.
type FailureResult struct {
	// Count is the failure counter after the increment.
	Count int64
	// Block is the duration written to the block key; zero when none was written.
	Block time.Duration
}

// Store is the key-value capability surface consumed by the limiters.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value and true, or "" and false if the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key. A ttl of 0 stores without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes keys and returns how many existed. No keys is a no-op.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Incr atomically increments key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// TTL returns the remaining lifetime of key, or [Missing] / [NoExpiry].
	TTL(ctx context.Context, key string) (time.Duration, error)
	// HGetAll returns all fields of a hash; an absent key yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HSet sets one field of a hash.
	HSet(ctx context.Context, key, field, value string) error
	// Keys lists every key matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// ReadCounter returns the integer at counterKey (0 if absent) and the
	// TTL of ttlKey in one round trip.
	ReadCounter(ctx context.Context, counterKey, ttlKey string) (int64, time.Duration, error)
	// RunWindow atomically evaluates one request against a fixed-window
	// counter hash and its block marker.
	RunWindow(ctx context.Context, counterKey, markerKey string, now time.Time, limit int64, window time.Duration) (WindowResult, error)
	// RecordFailure atomically increments counterKey and, when the new value is a
	// multiple of threshold, sets blockKey with the scheduled TTL for that tier.
	// Tiers past the end of schedule reuse the last entry.
	RecordFailure(ctx context.Context, counterKey, blockKey string, threshold int64, schedule []time.Duration) (FailureResult, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}
