package columnar

import (
	"bytes"
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"

	jsonpool "github.com/ajitpratap0/lumen/pkg/json"
)

// AvroField is one top-level field of an Avro record schema. Type is the
// primitive type name, or the logical type name when one is set.
type AvroField struct {
	Name     string
	Type     string
	Nullable bool
}

// AvroFile is the decoded content of an object container file.
type AvroFile struct {
	Name   string
	Fields []AvroField
	// Rows hold native values keyed by field name, unions unwrapped
	Rows []map[string]interface{}
}

// ReadAvro decodes every record of an object container file.
func ReadAvro(data []byte) (*AvroFile, error) {
	ocfReader, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro reader: %w", err)
	}

	file, err := avroRecordSchema(ocfReader.Codec().Schema())
	if err != nil {
		return nil, err
	}

	for ocfReader.Scan() {
		datum, err := ocfReader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read Avro record: %w", err)
		}
		m, ok := datum.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("avro datum is %T, expected a record", datum)
		}
		for _, f := range file.Fields {
			if f.Nullable {
				m[f.Name] = unwrapUnion(m[f.Name])
			}
		}
		file.Rows = append(file.Rows, m)
	}
	if err := ocfReader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Avro data: %w", err)
	}
	return file, nil
}

// WriteAvro writes rows as an object container file with the given schema.
// Values of nullable fields must already be wrapped with goavro.Union.
func WriteAvro(w io.Writer, schemaJSON string, rows []map[string]interface{}) error {
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Schema:          schemaJSON,
		CompressionName: goavro.CompressionSnappyLabel,
	})
	if err != nil {
		return fmt.Errorf("failed to create Avro writer: %w", err)
	}
	// readers reject zero-count blocks; the header alone is a valid empty file
	if len(rows) == 0 {
		return nil
	}

	data := make([]interface{}, len(rows))
	for i, r := range rows {
		data[i] = r
	}
	if err := ocfWriter.Append(data); err != nil {
		return fmt.Errorf("failed to write Avro records: %w", err)
	}
	return nil
}

func avroRecordSchema(avroSchema string) (*AvroFile, error) {
	var schemaMap map[string]interface{}
	if err := jsonpool.Unmarshal([]byte(avroSchema), &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to parse Avro schema: %w", err)
	}
	if schemaMap["type"] != "record" {
		return nil, fmt.Errorf("avro schema must be a record, got %v", schemaMap["type"])
	}

	file := &AvroFile{}
	file.Name, _ = schemaMap["name"].(string)

	fieldsData, _ := schemaMap["fields"].([]interface{})
	for _, fieldData := range fieldsData {
		fieldMap, ok := fieldData.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := fieldMap["name"].(string)
		typ, nullable := avroTypeName(fieldMap["type"])
		file.Fields = append(file.Fields, AvroField{Name: name, Type: typ, Nullable: nullable})
	}
	return file, nil
}

// avroTypeName resolves a field type to a single name. Unions of null and
// one other type are nullable; any other union is reported as "union".
func avroTypeName(avroType interface{}) (string, bool) {
	switch t := avroType.(type) {
	case string:
		return t, false
	case map[string]interface{}:
		if lt, ok := t["logicalType"].(string); ok {
			return lt, false
		}
		name, _ := t["type"].(string)
		return name, false
	case []interface{}:
		var members []interface{}
		nullable := false
		for _, m := range t {
			if m == "null" {
				nullable = true
				continue
			}
			members = append(members, m)
		}
		if len(members) != 1 {
			return "union", nullable
		}
		name, _ := avroTypeName(members[0])
		return name, nullable
	}
	return "unknown", false
}

// goavro decodes a non-null union member as a one-entry map keyed by type
func unwrapUnion(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok && len(m) == 1 {
		for _, inner := range m {
			return inner
		}
	}
	return v
}
