package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer creates a test tracer with an in-memory exporter.
func setupTestTracer(t *testing.T) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	tracer := provider.Tracer("test-tracer")
	return tracer, exporter
}

func getSpanByName(exporter *tracetest.InMemoryExporter, name string) (tracetest.SpanStub, bool) {
	for _, span := range exporter.GetSpans() {
		if span.Name == name {
			return span, true
		}
	}
	return tracetest.SpanStub{}, false
}

func getAttributeValue(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestWrapDispatchRecordsJobAttributes(t *testing.T) {
	tracer, exporter := setupTestTracer(t)
	info := JobSpanInfo{Kind: "implementor", ParentContextKey: "implementor:42", TopTaskID: 42, Pass: 1}

	called := false
	dispatch := WrapDispatch(TracingMiddlewareConfig{Tracer: tracer}, info, func(ctx context.Context) error {
		called = true
		return nil
	})

	err := dispatch(context.Background())
	require.NoError(t, err)
	require.True(t, called)

	span, found := getSpanByName(exporter, "tick.job.dispatch.implementor")
	require.True(t, found)
	require.Equal(t, codes.Ok, span.Status.Code)

	kind, found := getAttributeValue(span, AttrJobKind)
	require.True(t, found)
	require.Equal(t, "implementor", kind.AsString())

	key, found := getAttributeValue(span, AttrAdapterContextKey)
	require.True(t, found)
	require.Equal(t, "implementor:42", key.AsString())
}

func TestWrapDispatchRecordsError(t *testing.T) {
	tracer, exporter := setupTestTracer(t)
	info := JobSpanInfo{Kind: "auditor"}

	dispatch := WrapDispatch(TracingMiddlewareConfig{Tracer: tracer}, info, func(ctx context.Context) error {
		return errors.New("spawn failed")
	})

	err := dispatch(context.Background())
	require.Error(t, err)

	span, found := getSpanByName(exporter, "tick.job.dispatch.auditor")
	require.True(t, found)
	require.Equal(t, codes.Error, span.Status.Code)
}

func TestWrapDispatchNilTracerIsPassThrough(t *testing.T) {
	called := false
	dispatch := WrapDispatch(TracingMiddlewareConfig{}, JobSpanInfo{Kind: "test_runner"}, func(ctx context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, dispatch(context.Background()))
	require.True(t, called)
}
