package goThrottle

import "time"

// RateLimitRequest selects the counter to charge and, optionally, per-call limits.
//
// A zero MaxRequests or Window means "use the configured default". Subject is optional;
// identified and anonymous requests from the same client are counted separately.
type RateLimitRequest struct {
	LimiterKey     string
	ClientIdentity string
	Subject        string
	MaxRequests    int
	Window         time.Duration
}

// RateLimitDecision is the outcome of [Engine.CheckRateLimit].
//
// RemainingTime is zero when Allowed and otherwise counts down, in whole seconds, to the end
// of the current block.
type RateLimitDecision struct {
	Allowed        bool
	CurrentCount   int64
	RemainingTime  time.Duration
	ClientIdentity string
	WindowStart    time.Time
}

// RetryAfterSeconds returns RemainingTime as whole seconds.
func (d RateLimitDecision) RetryAfterSeconds() int64 {
	return int64(d.RemainingTime / time.Second)
}

// RateLimitStatus is the read-only view returned by [Engine.PeekRateLimit].
type RateLimitStatus struct {
	Exists         bool
	Count          int64
	WindowStart    time.Time
	BlockRemaining time.Duration
}

// LoginStatus is the outcome of [Engine.EvaluateLogin].
//
// RetryAfter is zero when the pair is not currently blocked, even if FailedCount is at or above
// the threshold. BlockDuration is the schedule entry of the current escalation tier.
type LoginStatus struct {
	FailedCount   int64
	RetryAfter    time.Duration
	BlockDuration time.Duration
}

// Blocked reports whether a lockout is active.
func (s LoginStatus) Blocked() bool {
	return s.RetryAfter > 0
}

// LoginFailure is the outcome of [Engine.RecordLoginFailure].
type LoginFailure struct {
	FailedCount   int64
	BlockApplied  bool
	BlockDuration time.Duration
}

// LoginAttempt is the outcome of [Engine.GuardLogin].
type LoginAttempt struct {
	// Blocked is set when the verifier was not called because a lockout is active.
	Blocked bool
	// Succeeded is set when the verifier accepted the credentials.
	Succeeded bool
	Status    LoginStatus
	// Failure is populated when the verifier reported invalid credentials.
	Failure LoginFailure
}
