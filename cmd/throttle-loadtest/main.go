// Command throttle-loadtest hammers one goThrottle engine with concurrent rate-limit checks and
// login failures, then verifies that no request was over-admitted and prints latency
// percentiles and the engine counters as collected through OpenTelemetry.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	goThrottle "github.com/MrEthical07/goThrottle"
	otelexport "github.com/MrEthical07/goThrottle/metrics/export/otel"
)

// Error is the error class of the load test.
var Error = errs.Class("loadtest")

type options struct {
	requests    int
	concurrency int
	clients     int
	maxRequests int
	window      time.Duration
	failures    int
	redisURI    string
	prefix      string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "throttle-loadtest",
		Short:        "Concurrent correctness and latency check for goThrottle",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&opts.requests, "requests", 20000, "rate-limit checks to issue")
	fs.IntVar(&opts.concurrency, "concurrency", 64, "concurrent workers")
	fs.IntVar(&opts.clients, "clients", 50, "distinct client identities")
	fs.IntVar(&opts.maxRequests, "max-requests", 100, "cap per client and window")
	fs.DurationVar(&opts.window, "window", time.Hour, "rate-limit window")
	fs.IntVar(&opts.failures, "failures", 3000, "failed logins to record against one account")
	fs.StringVar(&opts.redisURI, "redis-uri", os.Getenv("REDIS_URI"), "redis URI; empty uses an in-process miniredis")
	fs.StringVar(&opts.prefix, "prefix", fmt.Sprintf("loadtest-%d", time.Now().UnixNano()), "key prefix")

	return cmd
}

func run(ctx context.Context, out io.Writer, opts options) error {
	if opts.requests <= 0 || opts.concurrency <= 0 || opts.clients <= 0 || opts.failures < 0 {
		return Error.New("requests, concurrency and clients must be > 0")
	}

	client, cleanup, err := connect(opts.redisURI, out)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := goThrottle.DefaultConfig()
	cfg.Store.KeyPrefix = opts.prefix
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goThrottle.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	exporter, err := otelexport.NewOTelExporter(provider.Meter("throttle-loadtest"), engine)
	if err != nil {
		return err
	}
	defer func() { _ = exporter.Close() }()

	rl, allowed, err := ratePhase(ctx, engine, opts)
	if err != nil {
		return err
	}
	lf, lockouts, err := loginPhase(ctx, engine, opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "check", rl)
	printStats(out, "login-failure", lf)

	if want := expectedAllowed(opts); allowed != want {
		return Error.New("allowed %d checks, expected %d", allowed, want)
	}
	if want := int64(opts.failures / cfg.Login.FailuresPerBlock); lockouts != want {
		return Error.New("applied %d lockouts, expected %d", lockouts, want)
	}
	fmt.Fprintf(out, "allowed=%d lockouts=%d: ok\n", allowed, lockouts)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}
	printCounters(out, rm)

	return nil
}

func connect(uri string, out io.Writer) (redis.UniversalClient, func(), error) {
	if uri == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, Error.Wrap(err)
		}
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, nil, Error.Wrap(err)
	}
	fmt.Fprintf(out, "using redis at %s\n", opts.Addr)
	client := redis.NewClient(opts)
	return client, func() { _ = client.Close() }, nil
}

// expectedAllowed assumes the run finishes inside one window.
func expectedAllowed(opts options) int64 {
	var total int64
	for c := 0; c < opts.clients; c++ {
		n := opts.requests / opts.clients
		if c < opts.requests%opts.clients {
			n++
		}
		total += int64(min(n, opts.maxRequests))
	}
	return total
}

func ratePhase(ctx context.Context, engine *goThrottle.Engine, opts options) (phaseStats, int64, error) {
	var (
		cursor  int64
		allowed int64
	)
	rec := newRecorder(opts.requests)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.requests {
					return nil
				}
				t0 := time.Now()
				d, err := engine.CheckRateLimit(ctx, goThrottle.RateLimitRequest{
					LimiterKey:     "loadtest",
					ClientIdentity: fmt.Sprintf("10.0.%d.%d", (i%opts.clients)/256, (i%opts.clients)%256),
					MaxRequests:    opts.maxRequests,
					Window:         opts.window,
				})
				rec.add(time.Since(t0))
				if err != nil {
					return err
				}
				if d.Allowed {
					atomic.AddInt64(&allowed, 1)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, 0, err
	}
	return rec.stats(time.Since(start)), allowed, nil
}

func loginPhase(ctx context.Context, engine *goThrottle.Engine, opts options) (phaseStats, int64, error) {
	var (
		cursor   int64
		lockouts int64
	)
	rec := newRecorder(opts.failures)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for {
				if int(atomic.AddInt64(&cursor, 1)) > opts.failures {
					return nil
				}
				t0 := time.Now()
				f, err := engine.RecordLoginFailure(ctx, "loadtest@test.com", "10.9.9.9")
				rec.add(time.Since(t0))
				if err != nil {
					return err
				}
				if f.BlockApplied {
					atomic.AddInt64(&lockouts, 1)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, 0, err
	}
	return rec.stats(time.Since(start)), lockouts, nil
}

type recorder struct {
	mu      sync.Mutex
	samples []time.Duration
}

func newRecorder(capacity int) *recorder {
	return &recorder{samples: make([]time.Duration, 0, capacity)}
}

func (r *recorder) add(d time.Duration) {
	r.mu.Lock()
	r.samples = append(r.samples, d)
	r.mu.Unlock()
}

type phaseStats struct {
	total   time.Duration
	ops     int
	p50     time.Duration
	p95     time.Duration
	p99     time.Duration
	opsPerS float64
}

func (r *recorder) stats(total time.Duration) phaseStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(r.samples, func(i, j int) bool { return r.samples[i] < r.samples[j] })
	return phaseStats{
		total:   total,
		ops:     len(r.samples),
		p50:     percentile(r.samples, 50),
		p95:     percentile(r.samples, 95),
		p99:     percentile(r.samples, 99),
		opsPerS: float64(len(r.samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printCounters(out io.Writer, rm metricdata.ResourceMetrics) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				continue
			}
			fmt.Fprintf(out, "%s %d\n", m.Name, sum.DataPoints[0].Value)
		}
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
