// Package limiters implements the escalating login throttle.
//
// A [LoginThrottle] keeps two records per (subject, client) pair: a failure
// counter that only grows until an explicit reset, and an existence-only block
// key whose TTL is the active lockout. A block is written each time the
// counter reaches a multiple of the threshold, with a duration taken from the
// schedule and clamped to its last entry. Block expiry ends the lockout but
// leaves the counter in place, so the next crossing escalates further.
//
// # Architecture boundaries
//
// Counters and blocks live in the internal/stores adapter under keys built by
// internal/keys. Policy comes from [LockoutConfig] at construction time.
//
// # What this package must NOT do
//
//   - Verify credentials (callers report failures).
//   - Import goThrottle or the rate limiter.
package limiters
