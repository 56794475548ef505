package schema

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/lumen/pkg/errors"
)

func TestUnify(t *testing.T) {
	t.Run("declared order is kept", func(t *testing.T) {
		s, err := Unify([]Field{{Name: "b", Type: Integer}, {Name: "a", Type: String}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, s.Names())
	})

	t.Run("synthetic fields are appended", func(t *testing.T) {
		s, err := Unify(
			[]Field{{Name: "a", Type: Integer}, {Name: "b", Type: Integer}},
			Field{Name: "index", Type: Integer},
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "index"}, s.Names())
		assert.False(t, s.Field(0).Synthetic)
		assert.True(t, s.Field(2).Synthetic)
	})

	t.Run("synthetic fields are not deduplicated", func(t *testing.T) {
		s, err := Unify(
			[]Field{{Name: "index", Type: String}, {Name: "a", Type: Integer}},
			Field{Name: "index", Type: Integer},
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"index", "a", "index"}, s.Names())
		assert.Equal(t, 0, s.IndexOf("index"))
	})

	t.Run("declared duplicates are rejected", func(t *testing.T) {
		_, err := Unify([]Field{{Name: "a", Type: Integer}, {Name: "a", Type: Float}})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
		assert.Contains(t, err.Error(), `duplicate column name "a"`)
	})

	t.Run("unknown types are rejected", func(t *testing.T) {
		_, err := Unify([]Field{{Name: "a", Type: "decimal"}})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))

		_, err = Unify(nil, Field{Name: "index", Type: "decimal"})
		require.Error(t, err)
	})

	t.Run("names must be valid UTF-8", func(t *testing.T) {
		_, err := Unify([]Field{{Name: "h\xff", Type: Integer}})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
		assert.Equal(t, `schema: column name "h\xff" is not valid UTF-8`, err.Error())
	})

	t.Run("empty schema", func(t *testing.T) {
		s, err := Unify(nil)
		require.NoError(t, err)
		assert.Equal(t, 0, s.Len())
		assert.Empty(t, s.Names())
	})
}

func TestSchemaAccessors(t *testing.T) {
	s := New([]Field{{Name: "n_legs", Type: Integer}, {Name: "animals", Type: String}})

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, Field{Name: "animals", Type: String}, s.Field(1))
	assert.Equal(t, -1, s.IndexOf("missing"))
	assert.Equal(t, "{n_legs:integer, animals:string}", s.String())

	fields := s.Fields()
	fields[0].Name = "mutated"
	assert.Equal(t, "n_legs", s.Field(0).Name, "Fields must return a copy")

	assert.True(t, s.Equal(New(s.Fields())))
	assert.False(t, s.Equal(New(s.Fields()[:1])))
	assert.False(t, s.Equal(nil))
	var nilSchema *Schema
	assert.True(t, nilSchema.Equal(nil))
}

func TestSchemaToArrow(t *testing.T) {
	s := New([]Field{
		{Name: "i", Type: Integer},
		{Name: "f", Type: Float},
		{Name: "s", Type: String},
		{Name: "b", Type: Boolean},
		{Name: "ts", Type: Datetime},
		{Name: "d", Type: Date},
	})

	as := s.ToArrow()
	require.Equal(t, 6, as.NumFields())

	want := []arrow.Type{arrow.INT64, arrow.FLOAT64, arrow.STRING, arrow.BOOL, arrow.TIMESTAMP, arrow.DATE32}
	for i, id := range want {
		assert.Equal(t, id, as.Field(i).Type.ID(), "field %d", i)
		assert.True(t, as.Field(i).Nullable)
	}
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("datetime")
	require.NoError(t, err)
	assert.Equal(t, Datetime, dt)

	_, err = ParseDataType("decimal")
	assert.Error(t, err)
}

func TestTokenInferrer_InferColumn(t *testing.T) {
	ti := NewTokenInferrer([]string{time.RFC3339Nano, "2006-01-02 15:04:05"})

	tests := []struct {
		name   string
		tokens []string
		want   DataType
	}{
		{"no rows", nil, String},
		{"only empty", []string{"", ""}, String},
		{"integers", []string{"1", "-2", "+3"}, Integer},
		{"integers with nulls", []string{"1", "", "3"}, Integer},
		{"floats", []string{"1.5", "2", "3e2"}, Float},
		{"booleans", []string{"true", "false", "true"}, Boolean},
		{"capitalized booleans are words", []string{"TRUE", "False"}, String},
		{"bool and int", []string{"true", "1"}, String},
		{"dates", []string{"2024-01-02", "2023-12-31"}, Date},
		{"datetimes", []string{"2024-01-02 10:00:00", "2024-01-02T10:00:00Z"}, Datetime},
		{"dates mixed with datetimes", []string{"2024-01-02", "2024-01-02 10:00:00"}, Datetime},
		{"words", []string{"Flamingo", "Parrot"}, String},
		{"nan is a word", []string{"nan", "inf"}, String},
		{"overflowing int is float", []string{"99999999999999999999"}, Float},
		{"mixed numbers and words", []string{"1", "two"}, String},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ti.InferColumn(tt.tokens))
		})
	}
}

func TestTokenInferrer_ParseToken(t *testing.T) {
	ti := NewTokenInferrer([]string{"2006-01-02 15:04:05"})

	tests := []struct {
		name    string
		tok     string
		typ     DataType
		want    interface{}
		wantErr bool
	}{
		{"int", "42", Integer, int64(42), false},
		{"float", "2.5", Float, 2.5, false},
		{"bool", "true", Boolean, true, false},
		{"false", "false", Boolean, false, false},
		{"string", "x", String, "x", false},
		{"empty string stays", "", String, "", false},
		{"empty int is null", "", Integer, nil, false},
		{"date", "2024-03-01", Date, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"datetime", "2024-03-01 12:30:00", Datetime, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), false},
		{"bad int", "x", Integer, nil, true},
		{"bad bool", "yes", Boolean, nil, true},
		{"capitalized bool", "True", Boolean, nil, true},
		{"unknown type", "1", DataType("decimal"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ti.ParseToken(tt.tok, tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferValues(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		values  []interface{}
		want    DataType
		wantErr bool
	}{
		{"empty", nil, String, false},
		{"all null", []interface{}{nil, nil}, String, false},
		{"ints", []interface{}{1, int32(2), uint8(3)}, Integer, false},
		{"floats", []interface{}{1.5, float32(2)}, Float, false},
		{"int and float widen", []interface{}{1, 2.5, nil}, Float, false},
		{"strings", []interface{}{"a", nil, "b"}, String, false},
		{"bools", []interface{}{true, false}, Boolean, false},
		{"times", []interface{}{ts, nil}, Datetime, false},
		{"string and int", []interface{}{"a", 1}, "", true},
		{"unsupported", []interface{}{struct{}{}}, "", true},
		{"opaque", []interface{}{1, Opaque{Type: "main.point"}}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InferValues("col", tt.values)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type point struct{ x, y int }

func TestUnsupportedValue(t *testing.T) {
	direct := UnsupportedValue("a", 2, point{})
	standIn := UnsupportedValue("a", 2, Opaque{Type: TypeName(point{})})

	assert.Equal(t, `type_mismatch: column "a" row 2: unsupported value type schema.point`, direct.Error())
	assert.Equal(t, direct.Error(), standIn.Error())

	_, ok := ValueKind(Opaque{Type: "int"})
	assert.False(t, ok, "an opaque value is never storable")
}
