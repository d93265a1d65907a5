package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	goThrottle "github.com/MrEthical07/goThrottle"
	"github.com/MrEthical07/goThrottle/metrics/export/internaldefs"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no snapshot source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

const auditDroppedName = "gothrottle_audit_dropped_total"

type metricsSource interface {
	MetricsSnapshot() goThrottle.MetricsSnapshot
	AuditDropped() uint64
}

// reading is one instrument plus how to fill it from a snapshot.
type reading struct {
	instrument metric.Observable
	observe    func(metric.Observer, goThrottle.MetricsSnapshot, uint64)
}

// OTelExporter publishes engine snapshots through observable instruments.
// One callback reads a single snapshot per collection cycle.
type OTelExporter struct {
	source       metricsSource
	readings     []reading
	registration metric.Registration
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *goThrottle.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments on meter that read from source.
//
// Counters become Int64ObservableCounters under their exported names. The check latency
// histogram becomes one cumulative gauge per bucket, a _count gauge and a _sum counter in
// seconds. Dropped audit events are a counter of their own.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}

	for _, def := range internaldefs.CounterDefs {
		if err := e.addCounter(meter, def); err != nil {
			return nil, err
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		if err := e.addHistogram(meter, def); err != nil {
			return nil, err
		}
	}

	dropped, err := meter.Int64ObservableCounter(auditDroppedName,
		metric.WithDescription("Audit events dropped by dispatcher backpressure."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", auditDroppedName, err)
	}
	e.readings = append(e.readings, reading{
		instrument: dropped,
		observe: func(o metric.Observer, _ goThrottle.MetricsSnapshot, droppedEvents uint64) {
			o.ObserveInt64(dropped, int64(droppedEvents))
		},
	})

	instruments := make([]metric.Observable, len(e.readings))
	for i, r := range e.readings {
		instruments[i] = r.instrument
	}

	e.registration, err = meter.RegisterCallback(e.collect, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) addCounter(meter metric.Meter, def internaldefs.CounterDef) error {
	ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
	if err != nil {
		return fmt.Errorf("create %s: %w", def.Name, err)
	}
	id := def.ID
	e.readings = append(e.readings, reading{
		instrument: ins,
		observe: func(o metric.Observer, s goThrottle.MetricsSnapshot, _ uint64) {
			o.ObserveInt64(ins, int64(s.Counters[id]))
		},
	})
	return nil
}

func (e *OTelExporter) addHistogram(meter metric.Meter, def internaldefs.HistogramDef) error {
	id := def.ID

	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		bucket := i
		e.readings = append(e.readings, reading{
			instrument: ins,
			observe: func(o metric.Observer, s goThrottle.MetricsSnapshot, _ uint64) {
				cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(s.Histograms[id]))
				o.ObserveInt64(ins, int64(cumulative[bucket]))
			},
		})
	}

	countName := def.Name + "_count"
	count, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
	if err != nil {
		return fmt.Errorf("create %s: %w", countName, err)
	}
	e.readings = append(e.readings, reading{
		instrument: count,
		observe: func(o metric.Observer, s goThrottle.MetricsSnapshot, _ uint64) {
			var total uint64
			for _, v := range s.Histograms[id] {
				total += v
			}
			o.ObserveInt64(count, int64(total))
		},
	})

	sumName := def.Name + "_sum"
	sum, err := meter.Float64ObservableCounter(sumName,
		metric.WithDescription("Total observed latency."),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("create %s: %w", sumName, err)
	}
	e.readings = append(e.readings, reading{
		instrument: sum,
		observe: func(o metric.Observer, s goThrottle.MetricsSnapshot, _ uint64) {
			o.ObserveFloat64(sum, s.LatencySums[id].Seconds())
		},
	})
	return nil
}

func (e *OTelExporter) collect(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	for _, r := range e.readings {
		r.observe(o, snapshot, dropped)
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
