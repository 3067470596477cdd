// Package observe wires muhaffez into OpenTelemetry: metric instruments for
// the recitation pipeline, tracing helpers, a trace-aware slog logger and
// HTTP middleware.
//
// Metrics go through the OpenTelemetry Metrics API and are scraped from
// /metrics through the Prometheus exporter installed by [InitProvider].
// [DefaultMetrics] uses the global meter provider; tests should build their
// own with [NewMetrics] and a [metric.MeterProvider] backed by a manual
// reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/amrmuhaffez/muhaffez"

// Locate paths, used as the "path" attribute.
const (
	PathFast       = "fast"
	PathClassifier = "classifier"
	PathScan       = "scan"
)

// Alignment outcomes, used as the "outcome" attribute.
const (
	OutcomeMatch    = "match"
	OutcomeWeak     = "weak"
	OutcomeForward  = "forward"
	OutcomeBackward = "backward"
	OutcomeMiss     = "miss"
)

// Metrics holds the instruments. All fields are safe for concurrent use.
type Metrics struct {
	// LocateDuration is the latency of a locate attempt, by "path"
	// (fast or fallback).
	LocateDuration metric.Float64Histogram

	// ClassifierDuration is the latency of classifier requests.
	ClassifierDuration metric.Float64Histogram

	// Anchors counts sessions anchored, by "path".
	Anchors metric.Int64Counter

	// StaleResults counts fallback results dropped because the session was
	// already anchored or reset.
	StaleResults metric.Int64Counter

	// AlignedWords counts transcript words by alignment "outcome".
	AlignedWords metric.Int64Counter

	// Peeks counts look-ahead previews shown.
	Peeks metric.Int64Counter

	// ClassifierErrors counts failed classifier requests.
	ClassifierErrors metric.Int64Counter

	// ActiveSessions tracks live recitation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration is request latency by "method" and "path".
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LocateDuration, err = m.Float64Histogram("muhaffez.locate.duration",
		metric.WithDescription("Latency of locating the recited verse."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifierDuration, err = m.Float64Histogram("muhaffez.classifier.duration",
		metric.WithDescription("Latency of classifier predictions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Anchors, err = m.Int64Counter("muhaffez.anchors",
		metric.WithDescription("Sessions anchored on a verse, by locate path."),
	); err != nil {
		return nil, err
	}
	if met.StaleResults, err = m.Int64Counter("muhaffez.locate.stale",
		metric.WithDescription("Fallback results discarded because the session moved on."),
	); err != nil {
		return nil, err
	}
	if met.AlignedWords, err = m.Int64Counter("muhaffez.aligner.words",
		metric.WithDescription("Transcript words processed by the aligner, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Peeks, err = m.Int64Counter("muhaffez.peeks",
		metric.WithDescription("Look-ahead previews appended after a recitation stall."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierErrors, err = m.Int64Counter("muhaffez.classifier.errors",
		metric.WithDescription("Failed classifier requests."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("muhaffez.active_sessions",
		metric.WithDescription("Number of live recitation sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("muhaffez.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
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

// DefaultMetrics returns the package-level instance built on
// [otel.GetMeterProvider]. It panics if instrument creation fails, which the
// global provider never does.
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

// RecordAnchor counts one anchored session.
func (m *Metrics) RecordAnchor(ctx context.Context, path string) {
	m.Anchors.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}

// RecordAlignment counts n words with the given outcome.
func (m *Metrics) RecordAlignment(ctx context.Context, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.AlignedWords.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordLocate records the latency of one locate attempt.
func (m *Metrics) RecordLocate(ctx context.Context, path string, seconds float64) {
	m.LocateDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("path", path)))
}
