package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/lumen/pkg/client"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/observability"
	"github.com/ajitpratap0/lumen/pkg/wire"
)

// RoundTripper posts wire envelopes to a Lumen HTTP server.
type RoundTripper struct {
	url    string
	http   *http.Client
	tracer *observability.Tracer
}

// Option configures a RoundTripper.
type Option func(*RoundTripper)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(rt *RoundTripper) { rt.http = c }
}

// WithTracerProvider propagates trace context from tp's spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(rt *RoundTripper) { rt.tracer = observability.NewTracer(tp, "http") }
}

// NewRoundTripper creates a round tripper for the server at baseURL, for
// example "http://127.0.0.1:8760".
func NewRoundTripper(baseURL string, opts ...Option) *RoundTripper {
	rt := &RoundTripper{
		url:    strings.TrimSuffix(baseURL, "/") + RPCPath,
		http:   &http.Client{Timeout: 5 * time.Minute},
		tracer: observability.NewTracer(nil, "http"),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// RoundTrip implements wire.RoundTripper.
func (rt *RoundTripper) RoundTrip(ctx context.Context, envelope []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rt.url, bytes.NewReader(envelope))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to create request")
	}
	req.Header.Set("Content-Type", ContentType)
	rt.tracer.Inject(ctx, req.Header)

	resp, err := rt.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrorTypeTransport, "server returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body))).
			WithDetail("status", resp.StatusCode)
	}
	return body, nil
}

// Dial returns a client of the Lumen server at baseURL. No connection is
// made until the first request.
func Dial(baseURL string, opts []Option, wireOpts ...wire.ClientOption) (*client.Client, error) {
	wc, err := wire.NewClient(NewRoundTripper(baseURL, opts...), wireOpts...)
	if err != nil {
		return nil, err
	}
	return client.New(wc), nil
}

func (rt *RoundTripper) String() string {
	return fmt.Sprintf("httptransport.RoundTripper(%s)", rt.url)
}
