// Package columnar reads and writes the binary columnar file formats Lumen
// accepts as table sources: Arrow IPC streams, Parquet and Avro object
// container files.
//
// Readers hand back Arrow data (or Avro native values) for the ingestion
// adapters; writers exist so the command line tool and tests can produce
// inputs.
package columnar

import (
	"path/filepath"
	"strings"
)

// Format represents a columnar file format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Arrow is the Apache Arrow IPC stream format
	Arrow Format = "arrow"
	// Avro is Apache Avro object container format
	Avro Format = "avro"
)

// FormatInfo provides information about columnar formats
type FormatInfo struct {
	Format         Format
	Name           string
	Description    string
	FileExtensions []string
	MIMEType       string
}

var formats = []*FormatInfo{
	{
		Format:         Parquet,
		Name:           "Apache Parquet",
		Description:    "Columnar storage format optimized for analytics",
		FileExtensions: []string{".parquet", ".pq"},
		MIMEType:       "application/x-parquet",
	},
	{
		Format:         Arrow,
		Name:           "Apache Arrow",
		Description:    "In-memory columnar format, IPC stream encoding",
		FileExtensions: []string{".arrow", ".arrows", ".ipc"},
		MIMEType:       "application/vnd.apache.arrow.stream",
	},
	{
		Format:         Avro,
		Name:           "Apache Avro",
		Description:    "Row-oriented object container format with embedded schema",
		FileExtensions: []string{".avro"},
		MIMEType:       "application/avro",
	},
}

// GetFormatInfo returns information about a columnar format
func GetFormatInfo(format Format) *FormatInfo {
	for _, fi := range formats {
		if fi.Format == format {
			return fi
		}
	}
	return nil
}

// FormatForPath detects the format of a file from its extension.
func FormatForPath(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, fi := range formats {
		for _, e := range fi.FileExtensions {
			if e == ext {
				return fi.Format, true
			}
		}
	}
	return "", false
}
