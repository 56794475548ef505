// Package observability provides the OpenTelemetry tracing used by Lumen
// servers and transports.
//
// Servers take a trace.TracerProvider; the command line tool builds one with
// NewTracerProvider, tests use the SDK's span recorder, and embedders that
// pass nothing get the global provider (a no-op unless configured).
package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/lumen/pkg/errors"
)

// InstrumentationName identifies Lumen's spans.
const InstrumentationName = "github.com/ajitpratap0/lumen"

// Tracer starts spans for one component.
type Tracer struct {
	tracer     trace.Tracer
	component  string
	propagator propagation.TextMapPropagator
}

// NewTracer creates a tracer for component from tp. A nil tp uses the
// global provider.
func NewTracer(tp trace.TracerProvider, component string) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{
		tracer:    tp.Tracer(InstrumentationName),
		component: component,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
}

// Span wraps a trace.Span and collects attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// Start starts a span named "<component>.<operation>".
func (t *Tracer) Start(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, t.component+"."+operation)
	s := &Span{span: span}
	s.SetAttribute("lumen.component", t.component)
	return ctx, s
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End ends the span. A non-nil err marks the span as failed and records
// the error type.
func (s *Span) End(err error) {
	if err != nil {
		s.SetAttribute("error", true)
		s.SetAttribute("error.type", string(errors.TypeOf(err)))
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// Inject writes the trace context of ctx into h.
func (t *Tracer) Inject(ctx context.Context, h http.Header) {
	t.propagator.Inject(ctx, propagation.HeaderCarrier(h))
}

// Extract returns ctx carrying the trace context found in h.
func (t *Tracer) Extract(ctx context.Context, h http.Header) context.Context {
	return t.propagator.Extract(ctx, propagation.HeaderCarrier(h))
}

// Middleware traces every HTTP request, continuing the caller's trace when
// the request carries one.
func (t *Tracer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := t.Extract(r.Context(), r.Header)

		ctx, span := t.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.user_agent", r.UserAgent()),
			attribute.String("lumen.component", t.component),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
