// Package observe provides application-wide observability primitives for
// voxnote: OpenTelemetry metrics, tracing, structured logging helpers, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the admin server's /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxnote metrics.
const meterName = "github.com/voxnote/voxnote"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// RecordingDuration tracks wall-clock length of capture, from start to
	// completed shutdown protocol.
	RecordingDuration metric.Float64Histogram

	// TranscribeDuration tracks the upload-and-parse latency per provider.
	// Use with attribute.String("provider", ...).
	TranscribeDuration metric.Float64Histogram

	// SessionsStarted counts recording sessions by final status. Use with
	// attribute.String("status", ...): "done", "failed", or "no_speech".
	SessionsStarted metric.Int64Counter

	// ProviderErrors counts transcription failures by provider.
	ProviderErrors metric.Int64Counter

	// DeleteRetries counts artifact delete attempts beyond the first,
	// a signal that file locks are in play.
	DeleteRetries metric.Int64Counter

	// ActiveSessions tracks sessions currently in a non-terminal state.
	// With one session slot per orchestrator this is 0 or 1 per instance.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks admin endpoint processing time. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// both sub-second admin requests and multi-second uploads and recordings.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RecordingDuration, err = m.Float64Histogram("voxnote.recording.duration",
		metric.WithDescription("Wall-clock length of a capture, start through completed shutdown."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("voxnote.transcribe.duration",
		metric.WithDescription("Latency of the provider upload-and-parse cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("voxnote.sessions.started",
		metric.WithDescription("Recording sessions by final status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxnote.provider.errors",
		metric.WithDescription("Transcription failures by provider."),
	); err != nil {
		return nil, err
	}
	if met.DeleteRetries, err = m.Int64Counter("voxnote.artifact.delete_retries",
		metric.WithDescription("Artifact delete attempts beyond the first."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxnote.active_sessions",
		metric.WithDescription("Sessions currently in a non-terminal state."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxnote.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordTranscribe records one provider round trip: latency plus an error
// increment when the call failed.
func (m *Metrics) RecordTranscribe(ctx context.Context, provider string, elapsed time.Duration, failed bool) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	m.TranscribeDuration.Record(ctx, elapsed.Seconds(), attrs)
	if failed {
		m.ProviderErrors.Add(ctx, 1, attrs)
	}
}

// RecordSession records a finished session with its final status.
func (m *Metrics) RecordSession(ctx context.Context, status string) {
	m.SessionsStarted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}
