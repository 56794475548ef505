package columnar

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ReadParquet loads a whole Parquet file into an Arrow table. The caller
// releases the table.
func ReadParquet(ctx context.Context, data []byte, mem memory.Allocator) (arrow.Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), parquet.NewReaderProperties(mem),
		pqarrow.ArrowReadProperties{Parallel: true}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet data: %w", err)
	}
	return tbl, nil
}

// WriteParquet writes recs as a snappy-compressed Parquet file.
func WriteParquet(w io.Writer, sch *arrow.Schema, recs ...arrow.Record) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	fw, err := pqarrow.NewFileWriter(sch, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	for _, rec := range recs {
		if err := fw.Write(rec); err != nil {
			fw.Close()
			return fmt.Errorf("failed to write Parquet record: %w", err)
		}
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}
