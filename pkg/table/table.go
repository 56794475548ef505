// Package table defines the handle a server registers for every
// successfully constructed table.
package table

import (
	"time"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

// Table is a named, immutable columnar dataset. All methods are safe for
// concurrent use. Dropping a table from a registry does not free its
// buffers, so handles obtained earlier stay readable.
type Table struct {
	name    string
	kind    source.Kind
	store   *columnar.Store
	created time.Time
}

// New wraps store under name.
func New(name string, kind source.Kind, store *columnar.Store) *Table {
	return &Table{name: name, kind: kind, store: store, created: time.Now()}
}

// Name returns the registered name.
func (t *Table) Name() string { return t.name }

// Source returns the kind of source the table was built from.
func (t *Table) Source() source.Kind { return t.kind }

// Columns returns the column names in schema order, synthetic columns
// included. The slice is a fresh copy.
func (t *Table) Columns() []string { return t.store.Schema().Names() }

// Schema returns the table schema.
func (t *Table) Schema() *schema.Schema { return t.store.Schema() }

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.store.NumRows() }

// Store returns the underlying columnar store.
func (t *Table) Store() *columnar.Store { return t.store }

// Created returns when the table was registered.
func (t *Table) Created() time.Time { return t.created }

// Info returns the transport-neutral description of the table.
func (t *Table) Info() Info {
	return Info{
		Name:    t.name,
		Source:  t.kind,
		Fields:  t.store.Schema().Fields(),
		NumRows: t.store.NumRows(),
	}
}

// Info describes a table without its data.
type Info struct {
	Name    string         `json:"name"`
	Source  source.Kind    `json:"source"`
	Fields  []schema.Field `json:"fields"`
	NumRows int            `json:"num_rows"`
}

// Columns returns the column names in schema order.
func (i Info) Columns() []string {
	names := make([]string, len(i.Fields))
	for j, f := range i.Fields {
		names[j] = f.Name
	}
	return names
}

// Schema rebuilds the schema described by i.
func (i Info) Schema() *schema.Schema { return schema.New(i.Fields) }
