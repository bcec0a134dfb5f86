package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around the core's two suspension-heavy operations —
// the whole get-or-compute call and the factory invocation inside it —
// mirroring the span-per-call shape of the teacher's
// tracing/interceptors.go.
type Tracer struct {
	provider trace.TracerProvider
}

// NewTracer builds a Tracer. A nil provider falls back to the global
// otel.GetTracerProvider(), exactly like tracing.TracingConfig.tracer().
func NewTracer(provider trace.TracerProvider) *Tracer {
	return &Tracer{provider: provider}
}

func (t *Tracer) tracer() trace.Tracer {
	tp := t.provider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer("github.com/Keksclan/rawrcache/telemetry")
}

// StartHandle starts the "cache.handle" span for one get-or-compute call.
func (t *Tracer) StartHandle(ctx context.Context, key, store string) (context.Context, trace.Span) {
	ctx, span := t.tracer().Start(ctx, "cache.handle", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.String("cache.store", store),
	)
	return ctx, span
}

// StartFactory starts the "cache.factory" span around a single factory
// invocation.
func (t *Tracer) StartFactory(ctx context.Context, key string) (context.Context, trace.Span) {
	ctx, span := t.tracer().Start(ctx, "cache.factory", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("cache.key", key))
	return ctx, span
}

// EndWithResult sets span status/attributes from the outcome of the
// operation the span covered, then ends it.
func EndWithResult(span trace.Span, graced bool, err error) {
	span.SetAttributes(attribute.Bool("cache.graced", graced))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
