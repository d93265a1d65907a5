package goThrottle

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricRateLimitAllowed counts rate-limit checks that were admitted.
	MetricRateLimitAllowed MetricID = iota
	// MetricRateLimitDenied counts rate-limit checks that were rejected.
	MetricRateLimitDenied
	// MetricRateLimitBlockStarted counts denials that opened a new block marker.
	MetricRateLimitBlockStarted
	// MetricLoginBlocked counts login evaluations that found an active lockout.
	MetricLoginBlocked
	// MetricLoginFailure counts recorded failed logins.
	MetricLoginFailure
	// MetricLoginLockout counts failures that applied a new lockout.
	MetricLoginLockout
	// MetricLoginReset counts single-pair login resets.
	MetricLoginReset
	// MetricSubjectLoginReset counts subject-wide login resets.
	MetricSubjectLoginReset
	// MetricSubjectRateLimitUnlock counts subject-wide rate-limit unlocks.
	MetricSubjectRateLimitUnlock
	// MetricStoreError counts operations that failed with ErrStoreUnavailable.
	MetricStoreError
	// MetricCheckLatency is the latency histogram of CheckRateLimit.
	MetricCheckLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters.
//
// All methods are safe for concurrent use and are no-ops on a nil or disabled receiver.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// LatencySums holds the total observed time of each histogram.
	LatencySums map[MetricID]time.Duration
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics allocates counters for cfg. Latency histograms are recorded only when both
// Enabled and EnableLatencyHistograms are set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id by one.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only [MetricCheckLatency] has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricCheckLatency {
		return
	}
	if d < 0 {
		d = 0
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&m.histograms[id].sumNanos, uint64(d))
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot copies every counter, and the latency histogram when enabled. A disabled receiver
// returns empty, non-nil maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return emptySnapshot()
	}

	s := MetricsSnapshot{
		Counters:    make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:  make(map[MetricID][]uint64, 1),
		LatencySums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricCheckLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricCheckLatency].buckets[i])
		}
		s.Histograms[MetricCheckLatency] = buckets
		s.LatencySums[MetricCheckLatency] = time.Duration(atomic.LoadUint64(&m.histograms[MetricCheckLatency].sumNanos))
	}

	return s
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:    map[MetricID]uint64{},
		Histograms:  map[MetricID][]uint64{},
		LatencySums: map[MetricID]time.Duration{},
	}
}

// bucket upper bounds: 1ms 2ms 5ms 10ms 25ms 50ms 100ms +Inf
func bucketIndex(d time.Duration) int {
	switch {
	case d <= time.Millisecond:
		return 0
	case d <= 2*time.Millisecond:
		return 1
	case d <= 5*time.Millisecond:
		return 2
	case d <= 10*time.Millisecond:
		return 3
	case d <= 25*time.Millisecond:
		return 4
	case d <= 50*time.Millisecond:
		return 5
	case d <= 100*time.Millisecond:
		return 6
	default:
		return 7
	}
}
