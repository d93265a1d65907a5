// Package goThrottle provides a Redis-backed request throttle: fixed-window rate limits keyed by
// (limiter, client, subject) and an escalating lockout for failed logins keyed by
// (subject, client).
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines, and from multiple processes sharing one Redis, after
// initialization through [Builder.Build]. No throttling state is held in memory.
//
// # Architecture boundaries
//
// goThrottle is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (RateLimitDecision, LoginStatus, MetricsSnapshot, etc.). Key layout, the window script and
// lockout bookkeeping live under internal/ and are never exported. HTTP wiring lives in the
// middleware package and in cmd/throttled.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or key formats in its public API.
//   - Decide fail-open or fail-closed on store errors. The engine always returns
//     [ErrStoreUnavailable]; callers apply Config.Store.FailOpen.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Verify credentials. [Engine.GuardLogin] takes the verifier as a callback.
//
// # Consistency contract
//
// CheckRateLimit is one atomic script round-trip, so concurrent checks on one tuple never
// under-count. RecordLoginFailure derives the lockout from the counter value returned by INCR,
// so each escalation tier is applied exactly once.
package goThrottle
