// Package prometheus renders goThrottle metrics in Prometheus text format.
//
// [NewPrometheusExporter] reads [goThrottle.Engine.MetricsSnapshot] on every
// scrape. Counters are named gothrottle_*_total; the only histogram is
// gothrottle_check_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
