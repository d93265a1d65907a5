package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goThrottle "github.com/MrEthical07/goThrottle"
)

type fakeSource struct {
	snapshot goThrottle.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goThrottle.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goThrottle.MetricsSnapshot{
			Counters:   map[goThrottle.MetricID]uint64{},
			Histograms: map[goThrottle.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goThrottle.MetricsSnapshot{
			Counters: map[goThrottle.MetricID]uint64{
				goThrottle.MetricRateLimitDenied: 7,
				goThrottle.MetricLoginLockout:    2,
			},
			Histograms: map[goThrottle.MetricID][]uint64{
				goThrottle.MetricCheckLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			LatencySums: map[goThrottle.MetricID]time.Duration{
				goThrottle.MetricCheckLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gothrottle_rate_limit_denied_total 7",
		"gothrottle_login_lockout_total 2",
		"gothrottle_rate_limit_allowed_total 0",
		"gothrottle_check_latency_seconds_bucket{le=\"0.001\"} 1",
		"gothrottle_check_latency_seconds_bucket{le=\"+Inf\"} 36",
		"gothrottle_check_latency_seconds_count 36",
		"gothrottle_check_latency_seconds_sum 1.5",
		"gothrottle_audit_dropped_total 2",
		"# TYPE gothrottle_check_latency_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsUnobservedHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goThrottle.MetricsSnapshot{
			Counters:   map[goThrottle.MetricID]uint64{goThrottle.MetricRateLimitAllowed: 3},
			Histograms: map[goThrottle.MetricID][]uint64{},
		},
	})

	out := exp.Render()
	if !strings.Contains(out, "gothrottle_rate_limit_allowed_total 3") {
		t.Fatalf("missing counter in output:\n%s", out)
	}
	if strings.Contains(out, "gothrottle_check_latency_seconds") {
		t.Fatalf("histogram rendered without observations:\n%s", out)
	}
}

func TestRenderFromEngine(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	engine, err := goThrottle.New().WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	req := goThrottle.RateLimitRequest{LimiterKey: "forgot-password", ClientIdentity: "10.0.0.1", MaxRequests: 1}
	for i := 0; i < 2; i++ {
		if _, err := engine.CheckRateLimit(context.Background(), req); err != nil {
			t.Fatalf("check: %v", err)
		}
	}

	out := NewPrometheusExporter(engine).Render()
	if !strings.Contains(out, "gothrottle_rate_limit_allowed_total 1") ||
		!strings.Contains(out, "gothrottle_rate_limit_denied_total 1") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	var nilExporter *PrometheusExporter
	if got := nilExporter.Render(); got != "" {
		t.Fatalf("expected empty output from nil exporter, got %q", got)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goThrottle.MetricsSnapshot{
			Counters:   map[goThrottle.MetricID]uint64{goThrottle.MetricLoginFailure: 1},
			Histograms: map[goThrottle.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gothrottle_login_failure_total 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goThrottle.MetricsSnapshot{
			Counters: map[goThrottle.MetricID]uint64{
				goThrottle.MetricRateLimitAllowed: 1000,
				goThrottle.MetricRateLimitDenied:  40,
				goThrottle.MetricLoginFailure:     800,
				goThrottle.MetricLoginLockout:     10,
			},
			Histograms: map[goThrottle.MetricID][]uint64{
				goThrottle.MetricCheckLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
