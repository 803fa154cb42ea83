package otel

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware wraps next with a server span per request. Incoming
// W3C traceparent headers are honored, so calls issued by a traced
// agent join the agent's trace. A nil or disabled tracer returns
// next unchanged.
func (t *Tracer) HTTPMiddleware(next http.Handler) http.Handler {
	if t == nil || !t.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := t.Extract(r.Context(), r.Header)

		ctx, span := t.StartSpan(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				attribute.String("http.host", r.Host),
			),
		)
		defer span.End()

		sr := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(sr, r.WithContext(ctx))

		span.SetAttributes(semconv.HTTPResponseStatusCode(sr.status()))
		if sr.status() >= 400 {
			span.SetAttributes(attribute.Bool("error", true))
		}
	})
}

// Inject writes the trace context from ctx into outgoing headers.
func (t *Tracer) Inject(ctx context.Context, headers http.Header) {
	if t == nil || !t.Enabled() {
		return
	}
	t.propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}

// Extract reads the trace context from incoming headers into a new
// context derived from ctx.
func (t *Tracer) Extract(ctx context.Context, headers http.Header) context.Context {
	if t == nil || !t.Enabled() {
		return ctx
	}
	return t.propagator.Extract(ctx, propagation.HeaderCarrier(headers))
}

// statusRecorder captures the status code written by the wrapped
// handler. A bare Write counts as an implicit 200.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.code == 0 {
		sr.code = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.code == 0 {
		sr.code = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) status() int {
	if sr.code == 0 {
		return http.StatusOK
	}
	return sr.code
}
