package internaldefs

import (
	goThrottle "github.com/MrEthical07/goThrottle"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goThrottle.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goThrottle.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goThrottle.MetricRateLimitAllowed, Name: "gothrottle_rate_limit_allowed_total", Help: "Rate-limit checks that admitted the request."},
	{ID: goThrottle.MetricRateLimitDenied, Name: "gothrottle_rate_limit_denied_total", Help: "Rate-limit checks that denied the request."},
	{ID: goThrottle.MetricRateLimitBlockStarted, Name: "gothrottle_rate_limit_block_started_total", Help: "Denials that opened a new block window."},
	{ID: goThrottle.MetricLoginBlocked, Name: "gothrottle_login_blocked_total", Help: "Login evaluations that found an active lockout."},
	{ID: goThrottle.MetricLoginFailure, Name: "gothrottle_login_failure_total", Help: "Recorded failed logins."},
	{ID: goThrottle.MetricLoginLockout, Name: "gothrottle_login_lockout_total", Help: "Failed logins that applied a lockout."},
	{ID: goThrottle.MetricLoginReset, Name: "gothrottle_login_reset_total", Help: "Login throttle resets for one subject and client."},
	{ID: goThrottle.MetricSubjectLoginReset, Name: "gothrottle_subject_login_reset_total", Help: "Login throttle resets across all clients of a subject."},
	{ID: goThrottle.MetricSubjectRateLimitUnlock, Name: "gothrottle_subject_rate_limit_unlock_total", Help: "Rate-limit unlocks across all counters of a subject."},
	{ID: goThrottle.MetricStoreError, Name: "gothrottle_store_error_total", Help: "Operations that failed because the store was unavailable."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goThrottle.MetricCheckLatency, Name: "gothrottle_check_latency_seconds", Help: "CheckRateLimit latency histogram."},
}

// HistogramBounds are the upper bounds of the engine latency buckets in seconds.
var HistogramBounds = []string{
	"0.001",
	"0.002",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"+Inf",
}

// HistogramBoundSuffix are instrument-name-safe forms of [HistogramBounds].
var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
