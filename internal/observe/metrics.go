// Package observe provides application-wide observability primitives for
// voxengine: OpenTelemetry metrics and the SDK provider setup.
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

// meterName is the instrumentation scope name used for all voxengine metrics.
const meterName = "github.com/danakov/voxengine"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SynthesisDuration tracks one-shot clip synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// --- Counters ---

	// FramesSent counts capture frames forwarded to the live endpoint.
	FramesSent metric.Int64Counter

	// ChunksReceived counts audio chunks received from the live endpoint.
	ChunksReceived metric.Int64Counter

	// SendFailures counts fire-and-forget frame sends that failed.
	SendFailures metric.Int64Counter

	// DecodeErrors counts inbound chunks dropped as undecodable.
	DecodeErrors metric.Int64Counter

	// Interruptions counts remote interruption signals.
	Interruptions metric.Int64Counter

	// ClipRequests counts clip plays. Use with attribute:
	//   attribute.String("result", "hit"|"miss"|"busy")
	ClipRequests metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of open live sessions (0 or 1).
	ActiveSessions metric.Int64UpDownCounter

	// ScheduledItems tracks the number of frames scheduled or playing.
	ScheduledItems metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice synthesis latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("voxengine.synthesis.duration",
		metric.WithDescription("Latency of one-shot clip synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.FramesSent, err = m.Int64Counter("voxengine.live.frames_sent",
		metric.WithDescription("Total capture frames forwarded to the live endpoint."),
	); err != nil {
		return nil, err
	}
	if met.ChunksReceived, err = m.Int64Counter("voxengine.live.chunks_received",
		metric.WithDescription("Total audio chunks received from the live endpoint."),
	); err != nil {
		return nil, err
	}
	if met.SendFailures, err = m.Int64Counter("voxengine.live.send_failures",
		metric.WithDescription("Total frame sends that failed and were dropped."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("voxengine.live.decode_errors",
		metric.WithDescription("Total inbound chunks dropped as undecodable."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("voxengine.live.interruptions",
		metric.WithDescription("Total remote interruption signals."),
	); err != nil {
		return nil, err
	}
	if met.ClipRequests, err = m.Int64Counter("voxengine.clips.requests",
		metric.WithDescription("Total clip play requests by result."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voxengine.active_sessions",
		metric.WithDescription("Number of open live sessions."),
	); err != nil {
		return nil, err
	}
	if met.ScheduledItems, err = m.Int64UpDownCounter("voxengine.playback.scheduled_items",
		metric.WithDescription("Number of frames scheduled or currently playing."),
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

// RecordClipRequest records one clip play request with its result attribute.
func (m *Metrics) RecordClipRequest(ctx context.Context, result string) {
	m.ClipRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}
