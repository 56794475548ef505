// Package schema defines the column types of a Lumen table, the ordered
// schema that describes a table, the unifier that finalizes an adapter's
// column order, and the type inference used by the text adapters.
package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/lumen/pkg/errors"
)

// DataType is the canonical type of a column.
type DataType string

const (
	// Integer columns hold int64 values
	Integer DataType = "integer"
	// Float columns hold float64 values
	Float DataType = "float"
	// String columns hold UTF-8 strings
	String DataType = "string"
	// Boolean columns hold bools
	Boolean DataType = "boolean"
	// Datetime columns hold UTC instants with millisecond precision
	Datetime DataType = "datetime"
	// Date columns hold calendar days
	Date DataType = "date"
)

// ParseDataType returns the DataType named s.
func ParseDataType(s string) (DataType, error) {
	t := DataType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown data type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the canonical types.
func (t DataType) Valid() bool {
	switch t {
	case Integer, Float, String, Boolean, Datetime, Date:
		return true
	}
	return false
}

// ArrowType returns the Arrow type a column of type t is stored as.
func (t DataType) ArrowType() arrow.DataType {
	switch t {
	case Integer:
		return arrow.PrimitiveTypes.Int64
	case Float:
		return arrow.PrimitiveTypes.Float64
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case Datetime:
		return arrow.FixedWidthTypes.Timestamp_ms
	case Date:
		return arrow.FixedWidthTypes.Date32
	default:
		return arrow.BinaryTypes.String
	}
}

// Field is one named, typed column. Synthetic fields are injected by an
// adapter rather than declared by the source.
type Field struct {
	Name      string   `json:"name"`
	Type      DataType `json:"type"`
	Synthetic bool     `json:"synthetic,omitempty"`
}

// Schema is an immutable ordered sequence of fields.
type Schema struct {
	fields []Field
}

// New builds a schema from fields without validation. Adapters go through
// Unify instead; New is for rebuilding a schema that was already unified,
// for example after transport.
func New(fields []Field) *Schema {
	return &Schema{fields: append([]Field(nil), fields...)}
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.fields) }

// Field returns the i-th field.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the fields in order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Names returns the column names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// IndexOf returns the position of the first column called name, or -1.
func (s *Schema) IndexOf(name string) int {
	for i, f := range s.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether both schemas have the same fields in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// ToArrow returns the equivalent Arrow schema. Every column is nullable.
func (s *Schema) ToArrow() *arrow.Schema {
	fields := make([]arrow.Field, len(s.fields))
	for i, f := range s.fields {
		fields[i] = arrow.Field{Name: f.Name, Type: f.Type.ArrowType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + ":" + string(f.Type)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Unify finalizes an adapter's shape into a schema. Declared fields keep
// their order and must have unique, valid UTF-8 names; synthetic fields are appended
// after them, never inserted, and are not deduplicated against declared
// names.
func Unify(declared []Field, synthetic ...Field) (*Schema, error) {
	fields := make([]Field, 0, len(declared)+len(synthetic))
	seen := make(map[string]struct{}, len(declared))

	for _, f := range declared {
		if !utf8.ValidString(f.Name) {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column name %q is not valid UTF-8", f.Name).
				WithDetail("column", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeSchema, "duplicate column name %q", f.Name).
				WithDetail("column", f.Name)
		}
		if !f.Type.Valid() {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q has unknown type %q", f.Name, f.Type)
		}
		seen[f.Name] = struct{}{}
		f.Synthetic = false
		fields = append(fields, f)
	}

	for _, f := range synthetic {
		if !f.Type.Valid() {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q has unknown type %q", f.Name, f.Type)
		}
		f.Synthetic = true
		fields = append(fields, f)
	}

	return &Schema{fields: fields}, nil
}
