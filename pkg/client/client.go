// Package client is the capability handle through which tables are built
// and inspected.
//
// A Client is bound to exactly one Backend: a server in the same process
// (server.NewLocalClient) or a wire client talking to a server across a
// process or sandbox boundary. Both behave identically; in particular an
// error returned by a Client renders the same text regardless of where the
// server runs, so callers can match on substrings such as "CSV parse error".
package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
	"github.com/ajitpratap0/lumen/pkg/table"
)

// Backend is the set of operations a Client issues. *server.Server and
// *wire.Client implement it.
type Backend interface {
	// CreateTable builds a table from src and registers it under name; an
	// empty name asks the server to generate one
	CreateTable(ctx context.Context, src source.Source, name string) (table.Info, error)
	// TableInfo describes a registered table
	TableInfo(ctx context.Context, name string) (table.Info, error)
	// TableNames lists registered tables, sorted
	TableNames(ctx context.Context) ([]string, error)
	// DeleteTable drops a table from the registry
	DeleteTable(ctx context.Context, name string) error
}

// Client issues table requests to one backend.
type Client struct {
	backend Backend
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client bound to backend.
func New(backend Backend, opts ...Option) *Client {
	c := &Client{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TableOption configures a Table call.
type TableOption func(*tableOptions)

type tableOptions struct {
	name string
}

// WithName registers the table under name instead of a generated one.
func WithName(name string) TableOption {
	return func(o *tableOptions) { o.name = name }
}

// Table builds a table from src. On failure the error is returned exactly
// as the server produced it and nothing is registered.
func (c *Client) Table(ctx context.Context, src source.Source, opts ...TableOption) (*Table, error) {
	var o tableOptions
	for _, opt := range opts {
		opt(&o)
	}

	info, err := c.backend.CreateTable(ctx, src, o.name)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("table created", zap.String("table", info.Name), zap.Int("rows", info.NumRows))
	return &Table{client: c, info: info}, nil
}

// OpenTable returns a handle to an already registered table.
func (c *Client) OpenTable(ctx context.Context, name string) (*Table, error) {
	info, err := c.backend.TableInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Table{client: c, info: info}, nil
}

// TableNames lists the registered tables, sorted.
func (c *Client) TableNames(ctx context.Context) ([]string, error) {
	return c.backend.TableNames(ctx)
}

// Table is a client-side handle to a registered table. It caches the
// table description taken at creation; introspection never reaches the
// server again.
type Table struct {
	client *Client
	info   table.Info
}

// Name returns the registered name.
func (t *Table) Name() string { return t.info.Name }

// Columns returns the column names in schema order, including synthetic
// columns such as a frame's "index".
func (t *Table) Columns() []string { return t.info.Columns() }

// Schema returns the table schema.
func (t *Table) Schema() *schema.Schema { return t.info.Schema() }

// Size returns the number of rows.
func (t *Table) Size() int { return t.info.NumRows }

// Source returns the kind of source the table was built from.
func (t *Table) Source() source.Kind { return t.info.Source }

// Info returns a copy of the cached description.
func (t *Table) Info() table.Info {
	info := t.info
	info.Fields = append([]schema.Field(nil), t.info.Fields...)
	return info
}

// Delete drops the table from the server registry.
func (t *Table) Delete(ctx context.Context) error {
	if err := t.client.backend.DeleteTable(ctx, t.info.Name); err != nil {
		return err
	}
	t.client.logger.Debug("table deleted", zap.String("table", t.info.Name))
	return nil
}
