package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/lumen/pkg/config"
	"github.com/ajitpratap0/lumen/pkg/errors"
)

func newRecordingTracer(component string) (*Tracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return NewTracer(tp, component), rec
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracer_Span(t *testing.T) {
	tr, rec := newRecordingTracer("server")

	_, span := tr.Start(context.Background(), "table")
	span.SetAttribute("lumen.rows", 3)
	span.SetAttribute("lumen.source", "csv")
	span.End(nil)

	_, span = tr.Start(context.Background(), "table")
	span.End(errors.New(errors.ErrorTypeParse, "CSV parse error"))

	ended := rec.Ended()
	require.Len(t, ended, 2)

	ok := ended[0]
	assert.Equal(t, "server.table", ok.Name())
	assert.Equal(t, codes.Ok, ok.Status().Code)
	a := attrs(ok)
	assert.Equal(t, int64(3), a["lumen.rows"].AsInt64())
	assert.Equal(t, "csv", a["lumen.source"].AsString())
	assert.Equal(t, "server", a["lumen.component"].AsString())

	failed := ended[1]
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, "parse: CSV parse error", failed.Status().Description)
	assert.Equal(t, "parse", attrs(failed)["error.type"].AsString())
}

func TestTracer_Propagation(t *testing.T) {
	client, _ := newRecordingTracer("client")
	server, rec := newRecordingTracer("http")

	ctx, parent := client.Start(context.Background(), "call")
	parentID := trace.SpanContextFromContext(ctx).TraceID()

	var seen trace.SpanContext
	h := server.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/rpc", nil)
	client.Inject(ctx, req.Header)
	h.ServeHTTP(httptest.NewRecorder(), req)
	parent.End(nil)

	assert.Equal(t, parentID, seen.TraceID(), "server span continues the client trace")
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "POST /v1/rpc", rec.Ended()[0].Name())
	assert.Equal(t, trace.SpanKindServer, rec.Ended()[0].SpanKind())
}

func TestNewTracerProvider(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NewConfig("test").Observability

	tp, err := NewTracerProvider(cfg, "v0.0.0-test", &buf)
	require.NoError(t, err)

	_, span := NewTracer(tp, "cli").Start(context.Background(), "load")
	span.End(nil)

	require.NoError(t, Shutdown(context.Background(), tp))
	assert.Contains(t, buf.String(), `"Name": "cli.load"`)
	assert.Contains(t, buf.String(), "v0.0.0-test")
	assert.NoError(t, Shutdown(context.Background(), nil))
}
