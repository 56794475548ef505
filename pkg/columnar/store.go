// Package columnar holds the immutable column store behind every Lumen table
// and the builder adapters use to produce one.
//
// A Store is an Arrow record paired with the unified schema it was built
// from. Stores are never mutated after Finish, so they can be read from any
// number of goroutines without locking.
package columnar

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/lumen/pkg/schema"
)

// Store is an immutable, equal-length set of typed columns.
type Store struct {
	schema *schema.Schema
	record arrow.Record
}

// Schema returns the unified schema of the store.
func (s *Store) Schema() *schema.Schema { return s.schema }

// NumRows returns the number of rows.
func (s *Store) NumRows() int { return int(s.record.NumRows()) }

// NumColumns returns the number of columns, synthetic ones included.
func (s *Store) NumColumns() int { return int(s.record.NumCols()) }

// Column returns the i-th column.
func (s *Store) Column(i int) arrow.Array { return s.record.Column(i) }

// ColumnByName returns the first column called name.
func (s *Store) ColumnByName(name string) (arrow.Array, bool) {
	i := s.schema.IndexOf(name)
	if i < 0 {
		return nil, false
	}
	return s.record.Column(i), true
}

// Record exposes the underlying Arrow record. The record belongs to the
// store; callers that keep it past the store's lifetime must Retain it.
func (s *Store) Record() arrow.Record { return s.record }

// Value returns the cell at (row, col) as int64, float64, string, bool,
// time.Time or nil for nulls.
func (s *Store) Value(row, col int) interface{} {
	return valueAt(s.record.Column(col), row)
}

// Row returns every cell of one row in schema order.
func (s *Store) Row(row int) []interface{} {
	out := make([]interface{}, s.NumColumns())
	for i := range out {
		out[i] = s.Value(row, i)
	}
	return out
}

// MemoryUsage returns the number of bytes held by column buffers.
func (s *Store) MemoryUsage() int64 {
	var total int64
	for _, col := range s.record.Columns() {
		for _, buf := range col.Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	return total
}

// Release frees the column buffers. The store must not be used afterwards.
func (s *Store) Release() {
	if s.record != nil {
		s.record.Release()
	}
}

func (s *Store) String() string {
	return fmt.Sprintf("Store%s rows=%d", s.schema, s.NumRows())
}

func valueAt(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.Timestamp:
		return a.Value(i).ToTime(arrow.Millisecond)
	case *array.Date32:
		return a.Value(i).ToTime()
	default:
		return a.ValueStr(i)
	}
}
