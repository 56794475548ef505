package columnar

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/schema"
)

// Builder accumulates column values for one Store. Each column has its own
// Arrow builder, so different columns may be appended from different
// goroutines; a single column must not be appended concurrently.
//
// Finish either returns a complete store or releases everything it holds.
type Builder struct {
	schema   *schema.Schema
	builders []array.Builder
	done     bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	mem      memory.Allocator
	capacity int
}

// WithAllocator makes the builder allocate from mem instead of the Go heap.
func WithAllocator(mem memory.Allocator) BuilderOption {
	return func(o *builderOptions) { o.mem = mem }
}

// WithCapacity reserves room for n rows in every column.
func WithCapacity(n int) BuilderOption {
	return func(o *builderOptions) { o.capacity = n }
}

// NewBuilder creates a builder for a unified schema.
func NewBuilder(s *schema.Schema, opts ...BuilderOption) *Builder {
	o := builderOptions{mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(&o)
	}

	b := &Builder{schema: s, builders: make([]array.Builder, s.Len())}
	for i := 0; i < s.Len(); i++ {
		b.builders[i] = array.NewBuilder(o.mem, s.Field(i).Type.ArrowType())
		if o.capacity > 0 {
			b.builders[i].Reserve(o.capacity)
		}
	}
	return b
}

// Schema returns the schema the builder was created for.
func (b *Builder) Schema() *schema.Schema { return b.schema }

// Append casts v to the type of column col and appends it. nil appends a
// null. A value of a type no column holds, or one that cannot be cast, is
// a type_mismatch error.
func (b *Builder) Append(col int, v interface{}) error {
	field := b.schema.Field(col)
	bld := b.builders[col]
	if v == nil {
		bld.AppendNull()
		return nil
	}
	if _, ok := schema.ValueKind(v); !ok {
		return schema.UnsupportedValue(field.Name, bld.Len(), v)
	}
	if err := appendValue(bld, field.Type, v); err != nil {
		return errors.Newf(errors.ErrorTypeTypeMismatch,
			"column %q row %d: cannot store %T value %s as %s", field.Name, bld.Len(), v, describe(v), field.Type).
			WithDetail("column", field.Name).
			WithDetail("row", bld.Len())
	}
	return nil
}

// describe renders v for error text. Times print as RFC 3339 so the text
// carries neither a zone name nor a monotonic reading.
func describe(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

// AppendColumn appends every value of one column in order, stopping at the
// first value that cannot be cast.
func (b *Builder) AppendColumn(col int, values []interface{}) error {
	for _, v := range values {
		if err := b.Append(col, v); err != nil {
			return err
		}
	}
	return nil
}

// AppendArray appends a whole Arrow array to column col. The array type
// must already match the column's storage type.
func (b *Builder) AppendArray(col int, arr arrow.Array) error {
	field := b.schema.Field(col)
	if !arrow.TypeEqual(arr.DataType(), field.Type.ArrowType()) {
		return errors.Newf(errors.ErrorTypeTypeMismatch,
			"column %q: cannot store arrow %s as %s", field.Name, arr.DataType(), field.Type).
			WithDetail("column", field.Name)
	}
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			b.builders[col].AppendNull()
			continue
		}
		if err := appendValue(b.builders[col], field.Type, valueAt(arr, i)); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeTypeMismatch, "column %q row %d", field.Name, i)
		}
	}
	return nil
}

// Finish seals the builder into a Store. Every column must hold the same
// number of values, otherwise a schema error is returned. The builder
// cannot be reused, and all of its memory is released on failure.
func (b *Builder) Finish() (*Store, error) {
	if b.done {
		return nil, errors.New(errors.ErrorTypeInternal, "builder already finished")
	}
	b.done = true

	rows := 0
	for i, bld := range b.builders {
		if i == 0 {
			rows = bld.Len()
			continue
		}
		if bld.Len() != rows {
			name := b.schema.Field(i).Name
			err := errors.Newf(errors.ErrorTypeSchema,
				"column %q has %d values, expected %d", name, bld.Len(), rows).
				WithDetail("column", name)
			b.release()
			return nil, err
		}
	}

	cols := make([]arrow.Array, len(b.builders))
	for i, bld := range b.builders {
		cols[i] = bld.NewArray()
	}
	b.release()

	rec := array.NewRecord(b.schema.ToArrow(), cols, int64(rows))
	for _, c := range cols {
		c.Release()
	}
	return &Store{schema: b.schema, record: rec}, nil
}

// Release drops all buffered values without producing a store. It is safe
// to call after Finish.
func (b *Builder) Release() {
	b.done = true
	b.release()
}

func (b *Builder) release() {
	for i, bld := range b.builders {
		if bld != nil {
			bld.Release()
			b.builders[i] = nil
		}
	}
}

type castError struct{}

func (castError) Error() string { return "value cannot be cast" }

func appendValue(bld array.Builder, t schema.DataType, v interface{}) error {
	switch t {
	case schema.Integer:
		n, ok := toInt64(v)
		if !ok {
			return castError{}
		}
		bld.(*array.Int64Builder).Append(n)
	case schema.Float:
		f, ok := toFloat64(v)
		if !ok {
			return castError{}
		}
		bld.(*array.Float64Builder).Append(f)
	case schema.String:
		s, ok := v.(string)
		if !ok {
			return castError{}
		}
		bld.(*array.StringBuilder).Append(s)
	case schema.Boolean:
		x, ok := v.(bool)
		if !ok {
			return castError{}
		}
		bld.(*array.BooleanBuilder).Append(x)
	case schema.Datetime:
		ts, ok := v.(time.Time)
		if !ok {
			return castError{}
		}
		bld.(*array.TimestampBuilder).Append(arrow.Timestamp(ts.UnixMilli()))
	case schema.Date:
		ts, ok := v.(time.Time)
		if !ok {
			return castError{}
		}
		bld.(*array.Date32Builder).Append(arrow.Date32FromTime(ts))
	default:
		return castError{}
	}
	return nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	}
	return 0, false
}

func uintToInt64(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

// only integral floats within int64 range convert
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
