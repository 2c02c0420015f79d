// Package observe records OpenTelemetry metrics for silence removal jobs.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) records to
// the global meter provider, which is a no-op unless one is installed. The
// --stats flag installs a [Stats] provider backed by a manual reader and
// prints a summary once the job ends. Tests should use [NewMetrics] with a
// private provider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every instrument.
const meterName = "github.com/alnah/silence-remover"

// Instrument names.
const (
	BatchDurationName  = "silence_remover.batch.duration"
	BatchesName        = "silence_remover.batches"
	ActiveWorkersName  = "silence_remover.active_workers"
	SubprocessesName   = "silence_remover.subprocesses"
	KeptSecondsName    = "silence_remover.media.kept"
	RemovedSecondsName = "silence_remover.media.removed"
)

// Status attribute values.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// Metrics holds the metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// BatchDuration tracks the wall time of one split batch.
	BatchDuration metric.Float64Histogram

	// Batches counts finished batches. Use with attribute.String("status", ...).
	Batches metric.Int64Counter

	// ActiveWorkers tracks the number of batches currently encoding.
	ActiveWorkers metric.Int64UpDownCounter

	// Subprocesses counts encoder invocations. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	Subprocesses metric.Int64Counter

	// KeptSeconds and RemovedSeconds accumulate media time.
	KeptSeconds    metric.Float64Counter
	RemovedSeconds metric.Float64Counter
}

// batchBuckets are histogram boundaries in seconds for encoder passes.
var batchBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BatchDuration, err = m.Float64Histogram(BatchDurationName,
		metric.WithDescription("Wall time of one split batch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(batchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Batches, err = m.Int64Counter(BatchesName,
		metric.WithDescription("Finished split batches by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveWorkers, err = m.Int64UpDownCounter(ActiveWorkersName,
		metric.WithDescription("Split batches currently running."),
	); err != nil {
		return nil, err
	}
	if met.Subprocesses, err = m.Int64Counter(SubprocessesName,
		metric.WithDescription("Encoder invocations by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.KeptSeconds, err = m.Float64Counter(KeptSecondsName,
		metric.WithDescription("Media time kept in outputs."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.RemovedSeconds, err = m.Float64Counter(RemovedSecondsName,
		metric.WithDescription("Media time removed as silence."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics, created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordBatch records one finished batch.
func (m *Metrics) RecordBatch(ctx context.Context, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Batches.Add(ctx, 1, attrs)
	m.BatchDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordSubprocess records one encoder invocation.
func (m *Metrics) RecordSubprocess(ctx context.Context, kind, status string) {
	m.Subprocesses.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordMedia records kept and removed media time in seconds.
func (m *Metrics) RecordMedia(ctx context.Context, kept, removed float64) {
	m.KeptSeconds.Add(ctx, max(0, kept))
	m.RemovedSeconds.Add(ctx, max(0, removed))
}
