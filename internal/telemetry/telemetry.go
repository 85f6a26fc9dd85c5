// Package telemetry records build metrics with Prometheus and wraps build
// steps in OpenTelemetry spans.
//
// Metrics live on a private registry so a run can dump exactly its own
// series to a node_exporter textfile, or serve them from the release mirror.
// Spans go to the global tracer provider and are no-ops unless the embedding
// process installs an SDK.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Namespace prefixes every metric name.
	Namespace = "distkit"

	// TracerName is the instrumentation scope for spans.
	TracerName = "github.com/vango-dev/distkit"
)

// Metrics holds the collectors for one run. A nil *Metrics discards
// observations.
type Metrics struct {
	registry *prometheus.Registry

	buildDuration *prometheus.HistogramVec
	artifactBytes *prometheus.GaugeVec
	failures      *prometheus.CounterVec
	artifacts     prometheus.Counter
}

// NewMetrics creates and registers the distkit collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall-clock duration of build operations.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"operation", "platform"}),
		artifactBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "artifact_size_bytes",
			Help:      "Size of each produced release artifact.",
		}, []string{"artifact", "platform"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "build_failures_total",
			Help:      "Build operations that ended in an error.",
		}, []string{"operation"}),
		artifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "artifacts_total",
			Help:      "Release artifacts produced by this run.",
		}),
	}

	m.registry.MustRegister(m.buildDuration, m.artifactBytes, m.failures, m.artifacts)
	return m
}

// Registry returns the registry holding the run's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// ObserveBuild records one finished operation.
func (m *Metrics) ObserveBuild(operation, platform string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.buildDuration.WithLabelValues(operation, platform).Observe(d.Seconds())
	if err != nil {
		m.failures.WithLabelValues(operation).Inc()
	}
}

// ObserveArtifact records a produced artifact.
func (m *Metrics) ObserveArtifact(name, platform string, size int64) {
	if m == nil {
		return
	}
	m.artifacts.Inc()
	m.artifactBytes.WithLabelValues(name, platform).Set(float64(size))
}

// WriteTextfile writes the run's metrics in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry())
}

// Tracer returns the distkit tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a span and returns a function that ends it, recording err
// when non-nil.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
