// Package observe provides observability primitives for echotap:
// OpenTelemetry metrics for the capture pipeline plus structured
// logging setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A
// package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with a
// custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all echotap metrics.
const meterName = "github.com/emmett/echotap"

// Metrics holds all OpenTelemetry metric instruments for the pipeline.
// All fields are safe for concurrent use.
type Metrics struct {
	// FramesProcessed counts frames through the echo canceller. Use with
	// attribute: attribute.String("stream", "reference"|"near_end").
	FramesProcessed metric.Int64Counter

	// FramesDropped counts chunks discarded because a consumer fell
	// behind. Use with attribute: attribute.String("stage", ...).
	FramesDropped metric.Int64Counter

	// RingOverruns counts times the shared-memory consumer was lapped
	// and skipped forward.
	RingOverruns metric.Int64Counter

	// FallbackAttempts counts capture-variant start attempts. Use with
	// attributes: attribute.String("method", ...), attribute.String("status", ...).
	FallbackAttempts metric.Int64Counter

	// ProcessDuration tracks per-frame echo cancellation latency.
	ProcessDuration metric.Float64Histogram

	// EchoReduction tracks per-frame magnitude reduction through the
	// canceller as a ratio of input to output energy.
	EchoReduction metric.Float64Histogram

	// ActiveSessions tracks the number of capturing sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// processBuckets defines histogram bucket boundaries (in seconds) sized
// around the 10ms frame cadence.
var processBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
}

// NewMetrics creates a fully initialised [Metrics] struct using the
// given [metric.MeterProvider]. Returns an error if any instrument
// creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesProcessed, err = m.Int64Counter("echotap.frames.processed",
		metric.WithDescription("Total frames through the echo canceller by stream."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("echotap.frames.dropped",
		metric.WithDescription("Total chunks discarded by stage because a consumer fell behind."),
	); err != nil {
		return nil, err
	}
	if met.RingOverruns, err = m.Int64Counter("echotap.ring.overruns",
		metric.WithDescription("Times the shared-memory reader was lapped by the writer."),
	); err != nil {
		return nil, err
	}
	if met.FallbackAttempts, err = m.Int64Counter("echotap.capture.fallback_attempts",
		metric.WithDescription("Capture variant start attempts by method and status."),
	); err != nil {
		return nil, err
	}
	if met.ProcessDuration, err = m.Float64Histogram("echotap.aec.process.duration",
		metric.WithDescription("Per-frame echo cancellation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(processBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EchoReduction, err = m.Float64Histogram("echotap.aec.reduction",
		metric.WithDescription("Per-frame output to input energy ratio through the canceller."),
		metric.WithUnit("1"),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("echotap.active_sessions",
		metric.WithDescription("Number of sessions currently capturing."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating
// it on first call using [otel.GetMeterProvider]. Subsequent calls
// return the same pointer. Panics if instrument creation fails (should
// not happen with the global provider).
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

// RecordFrame records one frame through the canceller for the given
// stream ("reference" or "near_end").
func (m *Metrics) RecordFrame(ctx context.Context, stream string) {
	m.FramesProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stream", stream)),
	)
}

// RecordDrop records a discarded chunk at the given pipeline stage.
func (m *Metrics) RecordDrop(ctx context.Context, stage string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordFallbackAttempt records a capture variant start attempt and its
// outcome ("ok" or "failed").
func (m *Metrics) RecordFallbackAttempt(ctx context.Context, method, status string) {
	m.FallbackAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", status),
		),
	)
}
