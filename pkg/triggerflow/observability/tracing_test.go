package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("triggerflow")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestStartInvocationSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	_, span := sm.StartInvocationSpan(context.Background(), "inv-1", "corr-1")
	require.NotNil(t, span)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "triggerflow.invocation", spans[0].Name)
	assert.Equal(t, "inv-1", attrValue(spans[0].Attributes, "invocation.id"))
	assert.Equal(t, "corr-1", attrValue(spans[0].Attributes, "correlation.id"))
}

func TestStartDetectAndJobSpansAreChildren(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	ctx, invSpan := sm.StartInvocationSpan(context.Background(), "inv-1", "corr-1")

	_, detectSpan := sm.StartDetectSpan(ctx, "user.created")
	detectSpan.End()

	_, jobSpan := sm.StartJobSpan(ctx, "user.created", "welcome-email", "je-1")
	jobSpan.End()

	invSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}

	inv, ok := byName["triggerflow.invocation"]
	require.True(t, ok)
	detect, ok := byName["triggerflow.detect.user.created"]
	require.True(t, ok)
	job, ok := byName["triggerflow.job.welcome-email"]
	require.True(t, ok)

	assert.Equal(t, inv.SpanContext.SpanID(), detect.Parent.SpanID())
	assert.Equal(t, inv.SpanContext.SpanID(), job.Parent.SpanID())
	assert.Equal(t, "je-1", attrValue(job.Attributes, "job.execution_id"))
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	_, span := sm.StartDetectSpan(context.Background(), "e")
	sm.EndSpanWithError(span, errors.New("detector failed"))

	_, okSpan := sm.StartDetectSpan(context.Background(), "e2")
	sm.EndSpanWithError(okSpan, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	outCtx, span := sm.StartInvocationSpan(ctx, "i", "c")
	assert.Equal(t, ctx, outCtx)
	sm.EndSpanWithError(span, errors.New("ignored"))
	sm.AddSpanEvent(ctx, "ignored")
}
