package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records triggerflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDetection records a detector verdict with its duration and
	// error status.
	RecordDetection(ctx context.Context, event string, detected bool, duration time.Duration, err error)

	// RecordJobExecution records a settled job with its terminal status
	// and error kind ("" when the job completed).
	RecordJobExecution(ctx context.Context, event, job, status, errorKind string, duration time.Duration)

	// RecordInvocation records a completed invocation.
	RecordInvocation(ctx context.Context, status string, detected int, duration time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	detections        metric.Int64Counter
	detectionLatency  metric.Float64Histogram
	detectionErrors   metric.Int64Counter
	jobExecutions     metric.Int64Counter
	jobLatency        metric.Float64Histogram
	invocations       metric.Int64Counter
	invocationLatency metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("triggerflow")

	detections, err := meter.Int64Counter("triggerflow.detections",
		metric.WithDescription("Number of detector runs"),
	)
	if err != nil {
		return nil, err
	}

	detectionLatency, err := meter.Float64Histogram("triggerflow.detection.latency_ms",
		metric.WithDescription("Detector latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	detectionErrors, err := meter.Int64Counter("triggerflow.detection.errors",
		metric.WithDescription("Number of detector failures"),
	)
	if err != nil {
		return nil, err
	}

	jobExecutions, err := meter.Int64Counter("triggerflow.job.executions",
		metric.WithDescription("Number of job executions by status and error kind"),
	)
	if err != nil {
		return nil, err
	}

	jobLatency, err := meter.Float64Histogram("triggerflow.job.latency_ms",
		metric.WithDescription("Job execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invocations, err := meter.Int64Counter("triggerflow.invocations",
		metric.WithDescription("Number of invocations by terminal status"),
	)
	if err != nil {
		return nil, err
	}

	invocationLatency, err := meter.Float64Histogram("triggerflow.invocation.latency_ms",
		metric.WithDescription("Invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		detections:        detections,
		detectionLatency:  detectionLatency,
		detectionErrors:   detectionErrors,
		jobExecutions:     jobExecutions,
		jobLatency:        jobLatency,
		invocations:       invocations,
		invocationLatency: invocationLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDetection records a detector verdict.
func (m *otelMetrics) RecordDetection(ctx context.Context, event string, detected bool, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event", event),
		attribute.Bool("detected", detected),
	}

	m.detections.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.detectionLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.detectionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
	}
}

// RecordJobExecution records a settled job. The error_kind attribute keeps
// timeouts distinguishable from ordinary job failures for alerting.
func (m *otelMetrics) RecordJobExecution(ctx context.Context, event, job, status, errorKind string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("event", event),
		attribute.String("job", job),
		attribute.String("status", status),
		attribute.String("error_kind", errorKind),
	}
	m.jobExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.jobLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordInvocation records a completed invocation.
func (m *otelMetrics) RecordInvocation(ctx context.Context, status string, detected int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
		attribute.Int("events_detected", detected),
	}
	m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.invocationLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}
