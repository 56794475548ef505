// Package frame ingests labeled frames: named columns of Go values plus a
// row label axis.
//
// The label axis always becomes a synthetic column named "index", appended
// after the declared columns. A declared column that is itself called
// "index" is kept as is, so the resulting schema holds both.
package frame

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/ingest"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

// IndexColumn is the name of the synthetic row label column.
const IndexColumn = "index"

// Adapter ingests source.Frame values.
type Adapter struct {
	opts   ingest.Options
	logger *zap.Logger
}

// New creates a frame adapter.
func New(opts ingest.Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{opts: opts, logger: logger.With(zap.String("adapter", "frame"))}
}

// Kinds implements ingest.Adapter.
func (a *Adapter) Kinds() []source.Kind { return []source.Kind{source.KindFrame} }

// Ingest implements ingest.Adapter.
func (a *Adapter) Ingest(ctx context.Context, src source.Source) (*schema.Schema, *columnar.Store, error) {
	f, ok := src.(source.Frame)
	if !ok {
		return nil, nil, ingest.Mismatch("frame", src)
	}

	values, rows, err := columnValues(f)
	if err != nil {
		return nil, nil, err
	}

	fields := make([]schema.Field, len(f.Columns))
	if err := ingest.ForEachColumn(ctx, len(f.Columns), a.opts.Workers, func(col int) error {
		name := f.Columns[col]
		if t, ok := f.Types[name]; ok {
			fields[col] = schema.Field{Name: name, Type: t}
			return nil
		}
		t, err := schema.InferValues(name, values[col])
		if err != nil {
			return err
		}
		fields[col] = schema.Field{Name: name, Type: t}
		return nil
	}); err != nil {
		return nil, nil, err
	}
	if err := checkTypes(f); err != nil {
		return nil, nil, err
	}

	index, err := indexValues(f.Index, rows)
	if err != nil {
		return nil, nil, err
	}
	indexType, err := schema.InferValues(IndexColumn, index)
	if err != nil {
		return nil, nil, err
	}
	values = append(values, index)

	sch, err := schema.Unify(fields, schema.Field{Name: IndexColumn, Type: indexType})
	if err != nil {
		return nil, nil, err
	}

	store, err := ingest.Build(ctx, sch, rows, a.opts, func(b *columnar.Builder, col int) error {
		return b.AppendColumn(col, values[col])
	})
	if err != nil {
		return nil, nil, err
	}

	a.logger.Debug("frame ingested", zap.Int("columns", sch.Len()), zap.Int("rows", rows))
	return sch, store, nil
}

// columnValues returns one value slice per declared column and the row
// count, transposing row-major frames.
func columnValues(f source.Frame) ([][]interface{}, int, error) {
	if f.Data != nil && f.Rows != nil {
		return nil, 0, errors.New(errors.ErrorTypeSchema, "frame sets both column data and rows")
	}

	declared := make(map[string]struct{}, len(f.Columns))
	for _, name := range f.Columns {
		declared[name] = struct{}{}
	}
	values := make([][]interface{}, len(f.Columns))

	if f.Data != nil {
		for _, name := range sortedKeys(f.Data) {
			if _, ok := declared[name]; !ok {
				return nil, 0, errors.Newf(errors.ErrorTypeSchema, "frame data has undeclared column %q", name).
					WithDetail("column", name)
			}
		}
		rows := -1
		for i, name := range f.Columns {
			col, ok := f.Data[name]
			if !ok {
				return nil, 0, errors.Newf(errors.ErrorTypeSchema, "frame has no data for column %q", name).
					WithDetail("column", name)
			}
			if rows < 0 {
				rows = len(col)
			} else if len(col) != rows {
				return nil, 0, errors.Newf(errors.ErrorTypeSchema,
					"column %q has %d values, expected %d", name, len(col), rows).
					WithDetail("column", name)
			}
			values[i] = col
		}
		if rows < 0 {
			rows = 0
		}
		return values, rows, nil
	}

	for i := range values {
		values[i] = make([]interface{}, len(f.Rows))
	}
	for r, row := range f.Rows {
		if len(row) != len(f.Columns) {
			return nil, 0, errors.Newf(errors.ErrorTypeSchema,
				"row %d has %d values, expected %d", r, len(row), len(f.Columns)).
				WithDetail("row", r)
		}
		for c, v := range row {
			values[c][r] = v
		}
	}
	return values, len(f.Rows), nil
}

func checkTypes(f source.Frame) error {
	for _, name := range sortedKeys(f.Types) {
		t := f.Types[name]
		found := false
		for _, c := range f.Columns {
			if c == name {
				found = true
				break
			}
		}
		if !found {
			return errors.Newf(errors.ErrorTypeSchema, "type declared for unknown column %q", name).
				WithDetail("column", name)
		}
		if !t.Valid() {
			return errors.Newf(errors.ErrorTypeSchema, "column %q has unknown type %q", name, t).
				WithDetail("column", name)
		}
	}
	return nil
}

// sortedKeys keeps error reporting independent of map order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indexValues(index []interface{}, rows int) ([]interface{}, error) {
	if index == nil {
		out := make([]interface{}, rows)
		for i := range out {
			out[i] = int64(i)
		}
		return out, nil
	}
	if len(index) != rows {
		return nil, errors.Newf(errors.ErrorTypeSchema, "index has %d labels, expected %d", len(index), rows)
	}
	return index, nil
}
