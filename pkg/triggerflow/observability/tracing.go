package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the triggerflow tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("triggerflow")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartInvocationSpan starts a span for the entire invocation.
	StartInvocationSpan(ctx context.Context, invocationID, correlationID string) (context.Context, trace.Span)

	// StartDetectSpan starts a span for one detector run.
	// The detect span should be a child of the invocation span.
	StartDetectSpan(ctx context.Context, event string) (context.Context, trace.Span)

	// StartJobSpan starts a span for one job execution.
	StartJobSpan(ctx context.Context, event, job, jobExecutionID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartInvocationSpan starts a span for the entire invocation.
func (m *otelSpanManager) StartInvocationSpan(ctx context.Context, invocationID, correlationID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "triggerflow.invocation",
		trace.WithAttributes(
			attribute.String("invocation.id", invocationID),
			attribute.String("correlation.id", correlationID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartDetectSpan starts a span for one detector run.
func (m *otelSpanManager) StartDetectSpan(ctx context.Context, event string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "triggerflow.detect."+event,
		trace.WithAttributes(
			attribute.String("event", event),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartJobSpan starts a span for one job execution.
func (m *otelSpanManager) StartJobSpan(ctx context.Context, event, job, jobExecutionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "triggerflow.job."+job,
		trace.WithAttributes(
			attribute.String("event", event),
			attribute.String("job", job),
			attribute.String("job.execution_id", jobExecutionID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
