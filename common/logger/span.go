package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "basegraph.app/editorial"

// SpanContext is a started span plus the context carrying it.
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan starts a child of the span in ctx. The LogFields already on ctx
// become span attributes.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	opts = append(opts, trace.WithAttributes(spanAttributes(GetLogFields(ctx))...))
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// StartSpanFromTraceID continues a trace across the event queue. The event
// carries only a trace id, so the span is parented on a synthetic remote span
// context with that id. An empty or malformed id starts a new trace.
//
//	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_event")
//	defer sc.End()
func StartSpanFromTraceID(ctx context.Context, traceID, name string, opts ...trace.SpanStartOption) *SpanContext {
	if id, err := trace.TraceIDFromHex(traceID); err == nil && id.IsValid() {
		remote := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    id,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
	}
	return StartSpan(ctx, name, opts...)
}

func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

func (sc *SpanContext) End() {
	if sc.span != nil {
		sc.span.End()
	}
}

// RecordError records err on the span and marks the span failed.
func (sc *SpanContext) RecordError(err error) {
	if sc.span == nil || err == nil {
		return
	}
	sc.span.RecordError(err)
	sc.span.SetStatus(codes.Error, err.Error())
}

func spanAttributes(f LogFields) []attribute.KeyValue {
	var out []attribute.KeyValue
	if f.ProjectID != nil {
		out = append(out, attribute.String("editorial.project_id", *f.ProjectID))
	}
	if f.ThreadID != nil {
		out = append(out, attribute.String("editorial.thread_id", *f.ThreadID))
	}
	if f.EventType != nil {
		out = append(out, attribute.String("editorial.event_type", *f.EventType))
	}
	return out
}
