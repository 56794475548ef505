package columnar

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// WriteArrowStream writes recs as one Arrow IPC stream with schema sch.
func WriteArrowStream(w io.Writer, sch *arrow.Schema, recs ...arrow.Record) error {
	iw := ipc.NewWriter(w, ipc.WithSchema(sch))
	for _, rec := range recs {
		if err := iw.Write(rec); err != nil {
			iw.Close()
			return fmt.Errorf("failed to write Arrow record: %w", err)
		}
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return nil
}

// EncodeRecord returns rec as an Arrow IPC stream.
func EncodeRecord(rec arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteArrowStream(&buf, rec.Schema(), rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeColumn returns a single named array as a one-column IPC stream.
// Columns are encoded independently so a batch whose arrays differ in
// length can still be carried.
func EncodeColumn(name string, arr arrow.Array) ([]byte, error) {
	sch := arrow.NewSchema([]arrow.Field{{Name: name, Type: arr.DataType(), Nullable: true}}, nil)
	rec := array.NewRecord(sch, []arrow.Array{arr}, int64(arr.Len()))
	defer rec.Release()
	return EncodeRecord(rec)
}

// ReadArrowStream decodes every record batch of an IPC stream. The records
// are retained; the caller releases them.
func ReadArrowStream(data []byte, mem memory.Allocator) (*arrow.Schema, []arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	rdr, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}
	defer rdr.Release()

	var recs []arrow.Record
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		ReleaseRecords(recs)
		return nil, nil, fmt.Errorf("failed to read Arrow record: %w", err)
	}
	return rdr.Schema(), recs, nil
}

// DecodeColumn reverses EncodeColumn, concatenating the stream's batches.
func DecodeColumn(data []byte, mem memory.Allocator) (string, arrow.Array, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	sch, recs, err := ReadArrowStream(data, mem)
	if err != nil {
		return "", nil, err
	}
	defer ReleaseRecords(recs)

	if sch.NumFields() != 1 {
		return "", nil, fmt.Errorf("expected a single column stream, got %d columns", sch.NumFields())
	}
	field := sch.Field(0)

	chunks := make([]arrow.Array, len(recs))
	for i, rec := range recs {
		chunks[i] = rec.Column(0)
	}
	switch len(chunks) {
	case 0:
		b := array.NewBuilder(mem, field.Type)
		defer b.Release()
		return field.Name, b.NewArray(), nil
	case 1:
		chunks[0].Retain()
		return field.Name, chunks[0], nil
	}
	arr, err := array.Concatenate(chunks, mem)
	if err != nil {
		return "", nil, fmt.Errorf("failed to concatenate column %q: %w", field.Name, err)
	}
	return field.Name, arr, nil
}

// ReleaseRecords releases every record in recs.
func ReleaseRecords(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}
