package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TraceHeader carries the request's trace id back to the caller.
const TraceHeader = "X-Trace-Id"

// newTracerProvider installs an SDK tracer provider as the global provider so
// package-level otel.Tracer calls share the request span.
func newTracerProvider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp
}

// startSpan opens the server span for r. It is a no-op on a zero Observability.
func (o *Observability) startSpan(w http.ResponseWriter, r *http.Request) (context.Context, trace.Span) {
	if o.tracer == nil {
		return r.Context(), trace.SpanFromContext(r.Context())
	}
	ctx, span := o.tracer.Start(r.Context(), "HTTP "+r.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		),
	)
	w.Header().Set(TraceHeader, span.SpanContext().TraceID().String())
	return ctx, span
}
