// Package tracing provides distributed tracing infrastructure for the
// scheduler's orchestrator tick loop.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// JobSpanInfo carries the job attributes the middleware attaches to a
// dispatch span. The caller fills it in from the job being dispatched
// before invoking the traced dispatch function.
type JobSpanInfo struct {
	Kind            string
	ParentContextKey string
	TopTaskID       uint64
	Pass            int
}

// DispatchFunc performs one job dispatch (spawn/resume the adapter and
// send the rendered prompt) and reports whether the spawn itself
// succeeded (not the job's eventual Completed outcome, which arrives
// later as adapter events).
type DispatchFunc func(ctx context.Context) error

// TracingMiddlewareConfig configures the dispatch-tracing wrapper.
type TracingMiddlewareConfig struct {
	// Tracer is the OpenTelemetry tracer for creating spans. If nil,
	// WrapDispatch returns a pass-through (no tracing overhead).
	Tracer trace.Tracer
}

// WrapDispatch wraps a DispatchFunc so every invocation produces one span
// tagged with the job's attributes, named "tick.job.dispatch.<kind>".
func WrapDispatch(cfg TracingMiddlewareConfig, info JobSpanInfo, next DispatchFunc) DispatchFunc {
	if cfg.Tracer == nil {
		return next
	}
	return func(ctx context.Context) error {
		spanName := fmt.Sprintf("%s%s", SpanPrefixTick, "job.dispatch."+info.Kind)
		ctx, span := cfg.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()

		span.SetAttributes(
			attribute.String(AttrJobKind, info.Kind),
			attribute.String(AttrAdapterContextKey, info.ParentContextKey),
			attribute.Int64(AttrTopTaskID, int64(info.TopTaskID)),
			attribute.Int(AttrJobPass, info.Pass),
		)

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.AddEvent(EventJobDispatched)
		return err
	}
}
