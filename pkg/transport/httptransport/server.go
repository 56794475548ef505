// Package httptransport exposes a Lumen server over HTTP and provides the
// matching wire.RoundTripper for clients.
//
// Every wire envelope is POSTed to /v1/rpc and answered with a 200 carrying
// the response envelope; construction failures travel inside the envelope.
// Any other status means the request never reached the server and is
// reported to the caller as a transport error.
package httptransport

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/logger"
	"github.com/ajitpratap0/lumen/pkg/observability"
	"github.com/ajitpratap0/lumen/pkg/server"
	"github.com/ajitpratap0/lumen/pkg/wire"
)

const (
	// RPCPath receives wire envelopes
	RPCPath = "/v1/rpc"
	// ContentType of request and response envelopes
	ContentType = "application/vnd.lumen.envelope"
)

// Server serves one Lumen server over HTTP.
type Server struct {
	backend  *server.Server
	handler  *wire.Handler
	router   *chi.Mux
	server   *http.Server
	logger   *zap.Logger
	tracer   *observability.Tracer
	maxBytes int64
}

// NewServer creates an HTTP server for backend using its transport
// configuration.
func NewServer(backend *server.Server) *Server {
	s := &Server{
		backend:  backend,
		handler:  backend.Handler(),
		router:   chi.NewRouter(),
		logger:   backend.Logger().With(zap.String("component", "http")),
		tracer:   observability.NewTracer(backend.TracerProvider(), "http"),
		maxBytes: backend.Config().Transport.MaxBodyBytes,
	}
	s.setupMiddleware()
	s.setupRoutes()

	cfg := backend.Config().Transport
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.tracer.Middleware)
	s.router.Use(s.logRequests)
}

func (s *Server) setupRoutes() {
	s.router.Post(RPCPath, s.handleRPC)
	s.router.Get("/healthz", s.handleHealth)
	if s.backend.Config().Observability.EnableMetrics {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.backend.Metrics().Registry(), promhttp.HandlerOpts{}))
	}
}

// Router returns the HTTP handler, for tests and for embedding in another
// server.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until Shutdown. It
// returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("serving", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server. The Lumen server is left
// running; closing it is up to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			http.Error(w, "request envelope too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if id := middleware.GetReqID(ctx); id != "" {
		ctx = context.WithValue(ctx, logger.RequestIDKey, id)
	}
	resp := s.handler.ServeEnvelope(ctx, body)
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}
