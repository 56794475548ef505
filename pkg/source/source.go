// Package source defines the closed set of inputs a table can be built from.
//
// A Source is one of CSV, Arrow, ArrowIPC, Parquet, Avro, Frame or Records.
// The set is sealed: only this package can add variants, and every variant
// reports its Kind so the ingestion dispatcher can route it to exactly one
// adapter.
package source

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/lumen/pkg/schema"
)

// Kind identifies a source variant.
type Kind string

const (
	// KindCSV is delimited text with a header row
	KindCSV Kind = "csv"
	// KindArrow is a set of named in-memory Arrow arrays
	KindArrow Kind = "arrow"
	// KindArrowIPC is an Arrow IPC stream
	KindArrowIPC Kind = "arrow_ipc"
	// KindParquet is a Parquet file held in memory
	KindParquet Kind = "parquet"
	// KindAvro is an Avro object container file held in memory
	KindAvro Kind = "avro"
	// KindFrame is a labeled frame of Go values
	KindFrame Kind = "frame"
	// KindRecords is a JSON document of records or columns
	KindRecords Kind = "records"
)

// Kinds returns every source kind.
func Kinds() []Kind {
	return []Kind{KindCSV, KindArrow, KindArrowIPC, KindParquet, KindAvro, KindFrame, KindRecords}
}

// Source is an input to table construction.
type Source interface {
	Kind() Kind
	sealed()
}

// CSV is delimited text. The first line is the header. A zero Delimiter
// uses the server's configured default.
type CSV struct {
	Text      string
	Delimiter rune
}

// Kind implements Source.
func (CSV) Kind() Kind { return KindCSV }
func (CSV) sealed()    {}

// TSV returns a tab-delimited CSV source.
func TSV(text string) CSV {
	return CSV{Text: text, Delimiter: '\t'}
}

// Arrow is a batch of named Arrow arrays, one per column, in column order.
// The arrays stay owned by the caller; ingestion copies what it needs.
type Arrow struct {
	Names  []string
	Arrays []arrow.Array
}

// Kind implements Source.
func (Arrow) Kind() Kind { return KindArrow }
func (Arrow) sealed()    {}

// FromRecord builds an Arrow source from the columns of rec.
func FromRecord(rec arrow.Record) Arrow {
	names := make([]string, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		names[i] = f.Name
	}
	return Arrow{Names: names, Arrays: rec.Columns()}
}

// ArrowIPC is an Arrow IPC stream. Every record batch of the stream
// contributes rows.
type ArrowIPC struct {
	Data []byte
}

// Kind implements Source.
func (ArrowIPC) Kind() Kind { return KindArrowIPC }
func (ArrowIPC) sealed()    {}

// Parquet is the content of a Parquet file.
type Parquet struct {
	Data []byte
}

// Kind implements Source.
func (Parquet) Kind() Kind { return KindParquet }
func (Parquet) sealed()    {}

// Avro is the content of an Avro object container file whose schema is a
// record of primitive fields.
type Avro struct {
	Data []byte
}

// Kind implements Source.
func (Avro) Kind() Kind { return KindAvro }
func (Avro) sealed()    {}

// Frame is a labeled frame: an ordered set of named columns plus a row
// label axis. Values are supplied either column-major in Data or row-major
// in Rows, never both. Supported values are Go integers, floats, strings,
// bools, time.Time and nil.
type Frame struct {
	// Columns is the declared column order
	Columns []string
	// Data maps each declared column to its values
	Data map[string][]interface{}
	// Rows holds one slice of values per row, in Columns order
	Rows [][]interface{}
	// Index holds the row labels; nil means 0..n-1
	Index []interface{}
	// Types optionally forces the type of named columns
	Types map[string]schema.DataType
}

// Kind implements Source.
func (Frame) Kind() Kind { return KindFrame }
func (Frame) sealed()    {}

// Records is a JSON document: either an array of objects or an object of
// arrays.
type Records struct {
	Data []byte
}

// Kind implements Source.
func (Records) Kind() Kind { return KindRecords }
func (Records) sealed()    {}
