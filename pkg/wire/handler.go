package wire

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/client"
	"github.com/ajitpratap0/lumen/pkg/compression"
	"github.com/ajitpratap0/lumen/pkg/errors"
	jsonpool "github.com/ajitpratap0/lumen/pkg/json"
	"github.com/ajitpratap0/lumen/pkg/logger"
	"github.com/ajitpratap0/lumen/pkg/metrics"
)

// Handler serves framed requests against a backend, usually a server.
type Handler struct {
	backend  client.Backend
	logger   *zap.Logger
	metrics  *metrics.Collector
	mem      memory.Allocator
	maxBytes int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics records every request in c.
func WithMetrics(c *metrics.Collector) HandlerOption {
	return func(h *Handler) { h.metrics = c }
}

// WithHandlerAllocator allocates decoded Arrow arrays from mem.
func WithHandlerAllocator(mem memory.Allocator) HandlerOption {
	return func(h *Handler) { h.mem = mem }
}

// WithMaxRequestBytes bounds the decompressed size of a request (0 is
// unlimited).
func WithMaxRequestBytes(n int64) HandlerOption {
	return func(h *Handler) { h.maxBytes = n }
}

// NewHandler creates a handler for backend.
func NewHandler(backend client.Backend, opts ...HandlerOption) *Handler {
	h := &Handler{backend: backend, logger: zap.NewNop(), mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeEnvelope decodes one framed request, runs it and returns the framed
// response. Failures, including malformed requests, are reported inside the
// response; ServeEnvelope itself never fails.
func (h *Handler) ServeEnvelope(ctx context.Context, envelope []byte) []byte {
	payload, algo, err := compression.Unframe(envelope, h.maxBytes)
	if err != nil {
		if algo == "" {
			algo = compression.None
		}
		return h.reply(algo, &Response{Error: errors.ToPayload(
			errors.Wrap(err, errors.ErrorTypeTransport, "malformed request envelope"))})
	}

	var req Request
	if err := jsonpool.Unmarshal(payload, &req); err != nil {
		return h.reply(algo, &Response{Error: errors.ToPayload(
			errors.Wrap(err, errors.ErrorTypeTransport, "malformed request"))})
	}

	resp, err := h.serve(ctx, &req)
	if h.metrics != nil {
		h.metrics.ObserveRequest(string(req.Op), err)
	}
	if err != nil {
		if len(req.Name) > 0 {
			ctx = context.WithValue(ctx, logger.TableKey, string(req.Name))
		}
		logger.WithContext(ctx, h.logger).Debug("request failed",
			zap.String("op", string(req.Op)),
			zap.Error(err))
		resp = &Response{Error: errors.ToPayload(err)}
	}
	return h.reply(algo, resp)
}

func (h *Handler) serve(ctx context.Context, req *Request) (*Response, error) {
	switch req.Op {
	case OpCreateTable:
		src, release, err := DecodeSource(req.Source, h.mem)
		if err != nil {
			return nil, err
		}
		defer release()
		info, err := h.backend.CreateTable(ctx, src, string(req.Name))
		if err != nil {
			return nil, err
		}
		return &Response{Table: &info}, nil

	case OpTableInfo:
		info, err := h.backend.TableInfo(ctx, string(req.Name))
		if err != nil {
			return nil, err
		}
		return &Response{Table: &info}, nil

	case OpTableNames:
		names, err := h.backend.TableNames(ctx)
		if err != nil {
			return nil, err
		}
		if names == nil {
			names = []string{}
		}
		return &Response{Names: names}, nil

	case OpDeleteTable:
		if err := h.backend.DeleteTable(ctx, string(req.Name)); err != nil {
			return nil, err
		}
		return &Response{}, nil
	}
	return nil, errors.Newf(errors.ErrorTypeTransport, "unknown operation %q", req.Op)
}

func (h *Handler) reply(algo compression.Algorithm, resp *Response) []byte {
	payload, err := jsonpool.Marshal(resp)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		payload, _ = jsonpool.Marshal(&Response{Error: errors.ToPayload(
			errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode response"))})
	}

	comp, err := compression.CompressorFor(algo)
	if err == nil {
		if framed, err := compression.Frame(comp, payload); err == nil {
			return framed
		}
	}
	// the uncompressed frame is tag 0 followed by the message
	return append([]byte{0}, payload...)
}
