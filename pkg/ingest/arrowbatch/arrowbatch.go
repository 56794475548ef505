// Package arrowbatch ingests Arrow data: in-memory arrays, IPC streams and
// Parquet files, which all arrive as named, possibly chunked, Arrow columns.
//
// Column order is the supplied order. Arrow types are widened to the
// canonical column types; types without a canonical counterpart are
// rejected as schema errors.
package arrowbatch

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/errors"
	formats "github.com/ajitpratap0/lumen/pkg/formats/columnar"
	"github.com/ajitpratap0/lumen/pkg/ingest"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

const (
	// ParseErrorMessage prefixes errors for malformed Arrow IPC input
	ParseErrorMessage = "Arrow parse error"
	// ParquetErrorMessage prefixes errors for malformed Parquet input
	ParquetErrorMessage = "Parquet parse error"
)

// Adapter ingests source.Arrow, source.ArrowIPC and source.Parquet values.
type Adapter struct {
	opts   ingest.Options
	logger *zap.Logger
}

// New creates an Arrow batch adapter.
func New(opts ingest.Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{opts: opts, logger: logger.With(zap.String("adapter", "arrowbatch"))}
}

// Kinds implements ingest.Adapter.
func (a *Adapter) Kinds() []source.Kind {
	return []source.Kind{source.KindArrow, source.KindArrowIPC, source.KindParquet}
}

// column is one named column made of one or more chunks.
type column struct {
	name   string
	chunks []arrow.Array
}

func (c column) len() int {
	n := 0
	for _, ch := range c.chunks {
		n += ch.Len()
	}
	return n
}

// Ingest implements ingest.Adapter.
func (a *Adapter) Ingest(ctx context.Context, src source.Source) (*schema.Schema, *columnar.Store, error) {
	switch s := src.(type) {
	case source.Arrow:
		if len(s.Names) != len(s.Arrays) {
			return nil, nil, errors.Newf(errors.ErrorTypeSchema,
				"got %d column names for %d arrays", len(s.Names), len(s.Arrays))
		}
		cols := make([]column, len(s.Names))
		for i, name := range s.Names {
			if s.Arrays[i] == nil {
				return nil, nil, errors.Newf(errors.ErrorTypeSchema, "column %q has no array", name)
			}
			cols[i] = column{name: name, chunks: []arrow.Array{s.Arrays[i]}}
		}
		return a.ingest(ctx, cols)

	case source.ArrowIPC:
		sch, recs, err := formats.ReadArrowStream(s.Data, a.opts.Allocator)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, ParseErrorMessage)
		}
		defer formats.ReleaseRecords(recs)

		cols := make([]column, sch.NumFields())
		for i, f := range sch.Fields() {
			cols[i].name = f.Name
			for _, rec := range recs {
				cols[i].chunks = append(cols[i].chunks, rec.Column(i))
			}
		}
		return a.ingest(ctx, cols)

	case source.Parquet:
		tbl, err := formats.ReadParquet(ctx, s.Data, a.opts.Allocator)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, ParquetErrorMessage)
		}
		defer tbl.Release()

		cols := make([]column, tbl.NumCols())
		for i := range cols {
			c := tbl.Column(i)
			cols[i] = column{name: c.Name(), chunks: c.Data().Chunks()}
		}
		return a.ingest(ctx, cols)

	default:
		return nil, nil, ingest.Mismatch("arrowbatch", src)
	}
}

func (a *Adapter) ingest(ctx context.Context, cols []column) (*schema.Schema, *columnar.Store, error) {
	fields := make([]schema.Field, len(cols))
	rows := -1
	for i, c := range cols {
		if n := c.len(); rows < 0 {
			rows = n
		} else if n != rows {
			return nil, nil, errors.Newf(errors.ErrorTypeSchema,
				"column %q has %d values, expected %d", c.name, n, rows).
				WithDetail("column", c.name)
		}

		var dt arrow.DataType = arrow.Null
		if len(c.chunks) > 0 {
			dt = c.chunks[0].DataType()
		}
		t, err := CanonicalType(c.name, dt)
		if err != nil {
			return nil, nil, err
		}
		fields[i] = schema.Field{Name: c.name, Type: t}
	}
	if rows < 0 {
		rows = 0
	}

	sch, err := schema.Unify(fields)
	if err != nil {
		return nil, nil, err
	}

	store, err := ingest.Build(ctx, sch, rows, a.opts, func(b *columnar.Builder, col int) error {
		for _, chunk := range cols[col].chunks {
			if err := appendChunk(b, col, chunk); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	a.logger.Debug("arrow batch ingested", zap.Int("columns", sch.Len()), zap.Int("rows", rows))
	return sch, store, nil
}

// CanonicalType maps an Arrow type to the column type it widens to.
func CanonicalType(name string, dt arrow.DataType) (schema.DataType, error) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return schema.Integer, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return schema.Float, nil
	case arrow.STRING, arrow.LARGE_STRING, arrow.NULL:
		return schema.String, nil
	case arrow.BOOL:
		return schema.Boolean, nil
	case arrow.TIMESTAMP:
		return schema.Datetime, nil
	case arrow.DATE32, arrow.DATE64:
		return schema.Date, nil
	}
	return "", errors.Newf(errors.ErrorTypeSchema, "column %q has unsupported arrow type %s", name, dt).
		WithDetail("column", name).
		WithDetail("arrow_type", dt.String())
}

func appendChunk(b *columnar.Builder, col int, arr arrow.Array) error {
	if arrow.TypeEqual(arr.DataType(), b.Schema().Field(col).Type.ArrowType()) {
		return b.AppendArray(col, arr)
	}
	switch a := arr.(type) {
	case *array.Int8:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Int16:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Int32:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Int64:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Uint8:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Uint16:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Uint32:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Uint64:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Float32:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Float64:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.String:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.LargeString:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Boolean:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i) })
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i).ToTime(unit) })
	case *array.Date32:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i).ToTime() })
	case *array.Date64:
		return appendEach(b, col, arr, func(i int) interface{} { return a.Value(i).ToTime() })
	case *array.Null:
		return appendEach(b, col, arr, func(int) interface{} { return nil })
	}
	return errors.Newf(errors.ErrorTypeSchema, "unsupported arrow array %T", arr)
}

func appendEach(b *columnar.Builder, col int, arr arrow.Array, value func(i int) interface{}) error {
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			if err := b.Append(col, nil); err != nil {
				return err
			}
			continue
		}
		if err := b.Append(col, value(i)); err != nil {
			return err
		}
	}
	return nil
}
