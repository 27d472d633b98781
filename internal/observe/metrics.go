// Package observe provides application-wide observability primitives for
// RealTalk: OpenTelemetry metrics, tracing helpers, and the provider
// initialisation that bridges metrics to Prometheus.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all RealTalk metrics.
const meterName = "github.com/realtalk/realtalk"

// Metrics holds all OpenTelemetry metric instruments for the pipeline.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// StageDuration tracks per-stage latency. Use with attribute:
	//   attribute.String("stage", "recognize"|"translate"|"synthesize")
	StageDuration metric.Float64Histogram

	// UtteranceDuration tracks end-to-end latency from utterance
	// finalization to in-order emission.
	UtteranceDuration metric.Float64Histogram

	// --- Counters ---

	// FrameDrops counts capture frames dropped by ring-buffer overwrite.
	FrameDrops metric.Int64Counter

	// FrameFaults counts frames skipped by the denoiser as malformed.
	FrameFaults metric.Int64Counter

	// RejectedSegments counts utterances discarded for being shorter than
	// the minimum duration floor.
	RejectedSegments metric.Int64Counter

	// ForcedSegments counts utterances finalized by the max-duration
	// timeout rather than a silence boundary.
	ForcedSegments metric.Int64Counter

	// Utterances counts finalized utterances entering the stage pipeline.
	Utterances metric.Int64Counter

	// StageFailures counts failed stage calls. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("reason", ...)
	StageFailures metric.Int64Counter

	// --- Gauges ---

	// InFlight tracks utterances dispatched but not yet emitted.
	InFlight metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("realtalk.stage.duration",
		metric.WithDescription("Latency of one pipeline stage call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("realtalk.utterance.duration",
		metric.WithDescription("End-to-end latency from utterance finalization to emission."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.FrameDrops, err = m.Int64Counter("realtalk.frames.dropped",
		metric.WithDescription("Capture frames dropped by ring-buffer overwrite."),
	); err != nil {
		return nil, err
	}
	if met.FrameFaults, err = m.Int64Counter("realtalk.frames.faulted",
		metric.WithDescription("Frames skipped by the denoiser as malformed."),
	); err != nil {
		return nil, err
	}
	if met.RejectedSegments, err = m.Int64Counter("realtalk.segments.rejected",
		metric.WithDescription("Segments discarded for falling below the minimum duration."),
	); err != nil {
		return nil, err
	}
	if met.ForcedSegments, err = m.Int64Counter("realtalk.segments.forced",
		metric.WithDescription("Segments finalized by the max-duration timeout."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("realtalk.utterances",
		metric.WithDescription("Finalized utterances entering the stage pipeline."),
	); err != nil {
		return nil, err
	}
	if met.StageFailures, err = m.Int64Counter("realtalk.stage.failures",
		metric.WithDescription("Failed stage calls by stage and reason."),
	); err != nil {
		return nil, err
	}

	if met.InFlight, err = m.Int64UpDownCounter("realtalk.utterances.in_flight",
		metric.WithDescription("Utterances dispatched but not yet emitted."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordStageFailure records a failed stage call with the standard attribute
// set.
func (m *Metrics) RecordStageFailure(ctx context.Context, stage, reason string) {
	m.StageFailures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("reason", reason),
		),
	)
}

// RecordStageDuration records one stage call's latency in seconds.
func (m *Metrics) RecordStageDuration(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
