// Package server owns the table registry of one Lumen instance.
//
// A Server maps table names to immutable tables. Construction requests are
// dispatched to the format adapter for the source kind; a successful result
// is committed to the registry, a failure leaves the registry untouched and
// is returned to the caller unchanged.
//
// Names are reserved before ingestion starts. Two concurrent constructions
// under the same name are therefore deterministic: the first reservation
// wins and the second fails with a name_in_use error, whatever the
// configured conflict policy. With the replace policy, a construction under
// the name of a committed table replaces it once the new table is built.
//
// Every Server has its own registry, logger and metrics, so any number of
// servers can coexist in one process.
package server

import (
	"context"
	"sort"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/client"
	"github.com/ajitpratap0/lumen/pkg/compression"
	"github.com/ajitpratap0/lumen/pkg/config"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/ingest"
	"github.com/ajitpratap0/lumen/pkg/ingest/arrowbatch"
	"github.com/ajitpratap0/lumen/pkg/ingest/avro"
	"github.com/ajitpratap0/lumen/pkg/ingest/delimited"
	"github.com/ajitpratap0/lumen/pkg/ingest/frame"
	"github.com/ajitpratap0/lumen/pkg/ingest/records"
	"github.com/ajitpratap0/lumen/pkg/logger"
	"github.com/ajitpratap0/lumen/pkg/metrics"
	"github.com/ajitpratap0/lumen/pkg/observability"
	"github.com/ajitpratap0/lumen/pkg/source"
	"github.com/ajitpratap0/lumen/pkg/table"
	"github.com/ajitpratap0/lumen/pkg/wire"
)

// Server owns a table registry.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	dispatcher *ingest.Dispatcher
	metrics    *metrics.Collector
	tracer     *observability.Tracer
	tp         trace.TracerProvider
	mem        memory.Allocator

	mu      sync.Mutex
	tables  map[string]*table.Table
	pending map[string]struct{}
	closed  bool
}

// Option configures a Server.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	tp        trace.TracerProvider
	allocator memory.Allocator
}

// WithLogger sets the server logger. By default a logger is built from the
// observability section of the configuration.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the provider ingestion spans are started from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithAllocator makes every table store allocate from mem.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.allocator = mem }
}

// New creates a server. A nil cfg uses the defaults of config.NewConfig.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.NewConfig("lumen")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid server configuration")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l, err := logger.New(logger.Config{
			Level:       cfg.Observability.LogLevel,
			Encoding:    cfg.Observability.LogEncoding,
			Development: cfg.Observability.Development,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid logger configuration")
		}
		o.logger = l
	}
	log := o.logger.With(zap.String("server", cfg.Name))

	ingestOpts := ingest.OptionsFromConfig(cfg.Ingest)
	ingestOpts.Allocator = o.allocator
	dispatcher, err := ingest.NewDispatcher(log,
		delimited.New(ingestOpts, log),
		arrowbatch.New(ingestOpts, log),
		avro.New(ingestOpts, log),
		frame.New(ingestOpts, log),
		records.New(ingestOpts, log),
	)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:        cfg,
		logger:     log,
		dispatcher: dispatcher,
		metrics:    metrics.NewCollector(cfg.Name),
		tracer:     observability.NewTracer(o.tp, "server"),
		tp:         o.tp,
		mem:        o.allocator,
		tables:     make(map[string]*table.Table),
		pending:    make(map[string]struct{}),
	}, nil
}

// Config returns the server configuration.
func (s *Server) Config() *config.Config { return s.cfg }

// Logger returns the server logger.
func (s *Server) Logger() *zap.Logger { return s.logger }

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *metrics.Collector { return s.metrics }

// TracerProvider returns the provider passed with WithTracerProvider, or nil.
func (s *Server) TracerProvider() trace.TracerProvider { return s.tp }

// Kinds returns the source kinds the server can ingest.
func (s *Server) Kinds() []source.Kind { return s.dispatcher.Kinds() }

// Table builds a table from src and registers it under name. An empty name
// registers the table under a generated one.
func (s *Server) Table(ctx context.Context, src source.Source, name string) (*table.Table, error) {
	kind := "none"
	if src != nil {
		kind = string(src.Kind())
	}

	ctx, span := s.tracer.Start(ctx, "table")
	span.SetAttribute("lumen.source", kind)

	t, err := s.construct(ctx, src, name)
	if err != nil {
		span.End(err)
		return nil, err
	}

	span.SetAttribute("lumen.table", t.Name())
	span.SetAttribute("lumen.rows", t.NumRows())
	span.End(nil)
	return t, nil
}

func (s *Server) construct(ctx context.Context, src source.Source, name string) (*table.Table, error) {
	if name == "" {
		name = s.cfg.Registry.NamePrefix + uuid.NewString()
	} else if err := s.validateName(name); err != nil {
		return nil, err
	}

	replacing, err := s.reserve(name)
	if err != nil {
		return nil, err
	}

	kind := "none"
	if src != nil {
		kind = string(src.Kind())
	}
	ctx = context.WithValue(ctx, logger.TableKey, name)
	ctx = context.WithValue(ctx, logger.SourceKey, kind)
	log := logger.WithContext(ctx, s.logger)

	timer := metrics.NewTimer()
	sch, store, err := s.dispatcher.Ingest(ctx, src)
	elapsed := timer.Stop()

	if err != nil {
		s.unreserve(name)
		s.metrics.ObserveIngest(kind, 0, elapsed, err)
		log.Info("table construction failed",
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err))
		return nil, err
	}

	t := table.New(name, src.Kind(), store)
	if err := s.commit(t); err != nil {
		// never published, so nothing else holds the store
		store.Release()
		s.metrics.ObserveIngest(kind, 0, elapsed, err)
		return nil, err
	}
	s.metrics.ObserveIngest(kind, store.NumRows(), elapsed, nil)

	log.Info("table created",
		zap.Strings("columns", sch.Names()),
		zap.Int("rows", store.NumRows()),
		zap.Int64("bytes", store.MemoryUsage()),
		zap.Bool("replaced", replacing),
		zap.Duration("duration", elapsed))
	return t, nil
}

func (s *Server) validateName(name string) error {
	if len(name) > s.cfg.Registry.MaxNameLength {
		return errors.Newf(errors.ErrorTypeValidation,
			"table name is %d bytes long, the limit is %d", len(name), s.cfg.Registry.MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return errors.New(errors.ErrorTypeValidation, "table name is not valid UTF-8")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.Newf(errors.ErrorTypeValidation, "table name %q contains control characters", name)
		}
	}
	return nil
}

// reserve claims name for one construction. replacing reports whether a
// committed table will be replaced on success.
func (s *Server) reserve(name string) (replacing bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, errors.New(errors.ErrorTypeUnavailable, "server is closed")
	}
	if _, busy := s.pending[name]; busy {
		return false, errors.Newf(errors.ErrorTypeNameInUse, "table %q is already being created", name).
			WithDetail("table", name)
	}
	_, exists := s.tables[name]
	if exists && s.cfg.Registry.OnConflict != config.ConflictReplace {
		return false, errors.Newf(errors.ErrorTypeNameInUse, "table %q already exists", name).
			WithDetail("table", name)
	}
	if limit := s.cfg.Registry.MaxTables; limit > 0 && !exists && len(s.tables)+len(s.pending) >= limit {
		return false, errors.Newf(errors.ErrorTypeValidation, "table limit of %d reached", limit)
	}

	s.pending[name] = struct{}{}
	return exists, nil
}

func (s *Server) unreserve(name string) {
	s.mu.Lock()
	delete(s.pending, name)
	s.mu.Unlock()
}

func (s *Server) commit(t *table.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, t.Name())
	if s.closed {
		return errors.New(errors.ErrorTypeUnavailable, "server closed during table construction")
	}
	s.tables[t.Name()] = t
	s.metrics.SetTablesRegistered(len(s.tables))
	return nil
}

// OpenTable returns the table registered under name.
func (s *Server) OpenTable(name string) (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %q not found", name).
			WithDetail("table", name)
	}
	return t, nil
}

// Names returns the registered table names, sorted.
func (s *Server) Names() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	return names
}

// Drop removes the table registered under name. Handles obtained earlier
// stay readable.
func (s *Server) Drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "table %q not found", name).
			WithDetail("table", name)
	}
	delete(s.tables, name)
	s.metrics.SetTablesRegistered(len(s.tables))
	s.logger.Info("table dropped", zap.String("table", name))
	return nil
}

// Close empties the registry and rejects further constructions.
// Constructions already running finish but are not registered. Close is
// idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.tables = make(map[string]*table.Table)
	s.metrics.SetTablesRegistered(0)
	s.logger.Info("server closed")
	return nil
}

// CreateTable implements client.Backend.
func (s *Server) CreateTable(ctx context.Context, src source.Source, name string) (table.Info, error) {
	t, err := s.Table(ctx, src, name)
	if err != nil {
		return table.Info{}, err
	}
	return t.Info(), nil
}

// TableInfo implements client.Backend.
func (s *Server) TableInfo(_ context.Context, name string) (table.Info, error) {
	t, err := s.OpenTable(name)
	if err != nil {
		return table.Info{}, err
	}
	return t.Info(), nil
}

// TableNames implements client.Backend.
func (s *Server) TableNames(context.Context) ([]string, error) {
	return s.Names(), nil
}

// DeleteTable implements client.Backend.
func (s *Server) DeleteTable(_ context.Context, name string) error {
	return s.Drop(name)
}

// NewLocalClient returns a client that calls the server directly.
func (s *Server) NewLocalClient(opts ...client.Option) *client.Client {
	return client.New(s, append([]client.Option{client.WithLogger(s.logger)}, opts...)...)
}

// Handler returns a wire handler serving this server. Decoded requests are
// bounded by the transport's max body size.
func (s *Server) Handler() *wire.Handler {
	opts := []wire.HandlerOption{
		wire.WithHandlerLogger(s.logger),
		wire.WithMetrics(s.metrics),
		wire.WithMaxRequestBytes(s.cfg.Transport.MaxBodyBytes),
	}
	if s.mem != nil {
		opts = append(opts, wire.WithHandlerAllocator(s.mem))
	}
	return wire.NewHandler(s, opts...)
}

// NewClient returns a client that reaches the server through the wire
// codec in the same process. It behaves exactly like a client of a remote
// server, which makes it useful to check that callers do not depend on
// locality.
func (s *Server) NewClient(opts ...wire.ClientOption) (*client.Client, error) {
	algo, err := compression.ParseAlgorithm(s.cfg.Transport.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid transport compression")
	}
	opts = append([]wire.ClientOption{
		wire.WithCompression(algo),
		wire.WithLogger(s.logger),
	}, opts...)

	wc, err := wire.NewClient(wire.Loopback(s.Handler()), opts...)
	if err != nil {
		return nil, err
	}
	return client.New(wc, client.WithLogger(s.logger)), nil
}
