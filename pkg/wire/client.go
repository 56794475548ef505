package wire

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/client"
	"github.com/ajitpratap0/lumen/pkg/compression"
	"github.com/ajitpratap0/lumen/pkg/errors"
	jsonpool "github.com/ajitpratap0/lumen/pkg/json"
	"github.com/ajitpratap0/lumen/pkg/source"
	"github.com/ajitpratap0/lumen/pkg/table"
)

// RoundTripper delivers one framed request and returns the framed response.
type RoundTripper interface {
	RoundTrip(ctx context.Context, envelope []byte) ([]byte, error)
}

// RoundTripperFunc adapts a function to RoundTripper.
type RoundTripperFunc func(ctx context.Context, envelope []byte) ([]byte, error)

// RoundTrip implements RoundTripper.
func (f RoundTripperFunc) RoundTrip(ctx context.Context, envelope []byte) ([]byte, error) {
	return f(ctx, envelope)
}

// Loopback delivers envelopes to h in the same process. Every request and
// response is still fully encoded, so it exercises the same path as a
// remote server.
func Loopback(h *Handler) RoundTripper {
	return RoundTripperFunc(func(ctx context.Context, envelope []byte) ([]byte, error) {
		in := append([]byte(nil), envelope...)
		return h.ServeEnvelope(ctx, in), nil
	})
}

// Client is a client.Backend that talks to a server through a RoundTripper.
type Client struct {
	rt       RoundTripper
	comp     compression.Compressor
	maxBytes int64
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	algorithm compression.Algorithm
	maxBytes  int64
	logger    *zap.Logger
}

// WithCompression compresses requests with algo.
func WithCompression(algo compression.Algorithm) ClientOption {
	return func(o *clientOptions) { o.algorithm = algo }
}

// WithMaxResponseBytes bounds the decompressed size of a response (0 is
// unlimited).
func WithMaxResponseBytes(n int64) ClientOption {
	return func(o *clientOptions) { o.maxBytes = n }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// NewClient creates a wire client.
func NewClient(rt RoundTripper, opts ...ClientOption) (*Client, error) {
	o := clientOptions{algorithm: compression.None, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	comp, err := compression.CompressorFor(o.algorithm)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid wire compression")
	}
	return &Client{rt: rt, comp: comp, maxBytes: o.maxBytes, logger: o.logger}, nil
}

var _ client.Backend = (*Client)(nil)

// CreateTable implements client.Backend.
func (c *Client) CreateTable(ctx context.Context, src source.Source, name string) (table.Info, error) {
	msg, err := EncodeSource(src)
	if err != nil {
		return table.Info{}, err
	}
	resp, err := c.call(ctx, &Request{Op: OpCreateTable, Name: []byte(name), Source: msg})
	if err != nil {
		return table.Info{}, err
	}
	return tableInfo(resp)
}

// TableInfo implements client.Backend.
func (c *Client) TableInfo(ctx context.Context, name string) (table.Info, error) {
	resp, err := c.call(ctx, &Request{Op: OpTableInfo, Name: []byte(name)})
	if err != nil {
		return table.Info{}, err
	}
	return tableInfo(resp)
}

// TableNames implements client.Backend.
func (c *Client) TableNames(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, &Request{Op: OpTableNames})
	if err != nil {
		return nil, err
	}
	if resp.Names == nil {
		return []string{}, nil
	}
	return resp.Names, nil
}

// DeleteTable implements client.Backend.
func (c *Client) DeleteTable(ctx context.Context, name string) error {
	_, err := c.call(ctx, &Request{Op: OpDeleteTable, Name: []byte(name)})
	return err
}

func (c *Client) call(ctx context.Context, req *Request) (*Response, error) {
	payload, err := jsonpool.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to encode request")
	}
	envelope, err := compression.Frame(c.comp, payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to frame request")
	}

	framed, err := c.rt.RoundTrip(ctx, envelope)
	if err != nil {
		c.logger.Debug("round trip failed", zap.String("op", string(req.Op)), zap.Error(err))
		if errors.IsType(err, errors.ErrorTypeTransport) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "request failed")
	}

	payload, _, err = compression.Unframe(framed, c.maxBytes)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "malformed response envelope")
	}
	var resp Response
	if err := jsonpool.Unmarshal(payload, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "malformed response")
	}
	if resp.Error != nil {
		return nil, errors.FromPayload(resp.Error)
	}
	return &resp, nil
}

func tableInfo(resp *Response) (table.Info, error) {
	if resp.Table == nil {
		return table.Info{}, errors.New(errors.ErrorTypeTransport, "response has no table")
	}
	return *resp.Table, nil
}
