package goThrottle

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricRateLimitAllowed)

	if got := m.Value(MetricRateLimitAllowed); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRateLimitDenied)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRateLimitDenied); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		500 * time.Microsecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		10 * time.Millisecond,
		20 * time.Millisecond,
		50 * time.Millisecond,
		80 * time.Millisecond,
		time.Second,
	}

	for _, d := range observations {
		m.Observe(MetricCheckLatency, d)
	}
	// Only the check latency has a histogram.
	m.Observe(MetricLoginFailure, time.Millisecond)

	snap := m.Snapshot()
	if got, want := snap.LatencySums[MetricCheckLatency], 1166500*time.Microsecond; got != want {
		t.Fatalf("latency sum = %s, want %s", got, want)
	}

	buckets := snap.Histograms[MetricCheckLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestEngineRateLimitMetrics(t *testing.T) {
	te := newTestEngine(t, func(c *Config) {
		c.Metrics.EnableLatencyHistograms = true
	}, nil)
	ctx := context.Background()
	req := RateLimitRequest{LimiterKey: "m", ClientIdentity: "c", MaxRequests: 2}

	for i := 0; i < 4; i++ {
		if _, err := te.CheckRateLimit(ctx, req); err != nil {
			t.Fatalf("check: %v", err)
		}
	}
	if _, err := te.UnlockRateLimitsForSubject(ctx, "nobody"); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	snap := te.MetricsSnapshot()
	if snap.Counters[MetricRateLimitAllowed] != 2 {
		t.Fatalf("expected 2 allowed, got %d", snap.Counters[MetricRateLimitAllowed])
	}
	if snap.Counters[MetricRateLimitDenied] != 2 {
		t.Fatalf("expected 2 denied, got %d", snap.Counters[MetricRateLimitDenied])
	}
	if snap.Counters[MetricRateLimitBlockStarted] != 1 {
		t.Fatalf("expected 1 block started, got %d", snap.Counters[MetricRateLimitBlockStarted])
	}
	if snap.Counters[MetricSubjectRateLimitUnlock] != 1 {
		t.Fatalf("expected 1 unlock, got %d", snap.Counters[MetricSubjectRateLimitUnlock])
	}

	var observed uint64
	for _, v := range snap.Histograms[MetricCheckLatency] {
		observed += v
	}
	if observed != 4 {
		t.Fatalf("expected 4 latency observations, got %d", observed)
	}
}
