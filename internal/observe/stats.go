package observe

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Stats is an in-process meter provider whose data is read back on demand.
type Stats struct {
	Metrics  *Metrics
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewStats creates a Stats provider tagged with the given service version.
func NewStats(version string) (*Stats, error) {
	res := resource.NewSchemaless(
		semconv.ServiceName("silence-remover"),
		semconv.ServiceVersion(version),
	)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	m, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, err
	}
	return &Stats{Metrics: m, reader: reader, provider: mp}, nil
}

// Shutdown releases the provider.
func (s *Stats) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

// Summary is a point-in-time digest of the recorded metrics.
type Summary struct {
	// Batches counts finished batches by status.
	Batches map[string]int64
	// Subprocesses counts encoder runs keyed "kind/status".
	Subprocesses map[string]int64
	// BatchCount, BatchTotal and BatchMax describe batch wall times.
	BatchCount uint64
	BatchTotal time.Duration
	BatchMax   time.Duration

	KeptSeconds    float64
	RemovedSeconds float64
}

// Summary collects the current metric values.
func (s *Stats) Summary(ctx context.Context) (Summary, error) {
	var rm metricdata.ResourceMetrics
	if err := s.reader.Collect(ctx, &rm); err != nil {
		return Summary{}, fmt.Errorf("collect metrics: %w", err)
	}
	return summarize(rm), nil
}

func summarize(rm metricdata.ResourceMetrics) Summary {
	sum := Summary{
		Batches:      make(map[string]int64),
		Subprocesses: make(map[string]int64),
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case BatchesName:
				for _, dp := range intPoints(m) {
					sum.Batches[attrValue(dp.Attributes, "status")] += dp.Value
				}
			case SubprocessesName:
				for _, dp := range intPoints(m) {
					key := attrValue(dp.Attributes, "kind") + "/" + attrValue(dp.Attributes, "status")
					sum.Subprocesses[key] += dp.Value
				}
			case BatchDurationName:
				h, ok := m.Data.(metricdata.Histogram[float64])
				if !ok {
					continue
				}
				for _, dp := range h.DataPoints {
					sum.BatchCount += dp.Count
					sum.BatchTotal += seconds(dp.Sum)
					if v, ok := dp.Max.Value(); ok {
						sum.BatchMax = max(sum.BatchMax, seconds(v))
					}
				}
			case KeptSecondsName:
				sum.KeptSeconds += floatTotal(m)
			case RemovedSecondsName:
				sum.RemovedSeconds += floatTotal(m)
			}
		}
	}
	return sum
}

// Write prints the summary as aligned text.
func (s Summary) Write(w io.Writer) {
	fmt.Fprintln(w, "Stats:")
	fmt.Fprintf(w, "  batches:       %s\n", formatCounts(s.Batches))
	fmt.Fprintf(w, "  subprocesses:  %s\n", formatCounts(s.Subprocesses))
	if s.BatchCount > 0 {
		avg := s.BatchTotal / time.Duration(s.BatchCount)
		fmt.Fprintf(w, "  batch time:    avg %s, max %s\n",
			avg.Round(time.Millisecond), s.BatchMax.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  media kept:    %.1fs\n", s.KeptSeconds)
	fmt.Fprintf(w, "  media removed: %.1fs\n", s.RemovedSeconds)
}

func formatCounts(counts map[string]int64) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", k, counts[k])
	}
	return out
}

func intPoints(m metricdata.Metrics) []metricdata.DataPoint[int64] {
	if s, ok := m.Data.(metricdata.Sum[int64]); ok {
		return s.DataPoints
	}
	return nil
}

func floatTotal(m metricdata.Metrics) float64 {
	s, ok := m.Data.(metricdata.Sum[float64])
	if !ok {
		return 0
	}
	var total float64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func attrValue(set attribute.Set, key string) string {
	v, ok := set.Value(attribute.Key(key))
	if !ok {
		return "unknown"
	}
	return v.AsString()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
