package avro

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/lumen/pkg/errors"
	formats "github.com/ajitpratap0/lumen/pkg/formats/columnar"
	"github.com/ajitpratap0/lumen/pkg/ingest"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

const animalSchema = `{
	"type": "record",
	"name": "Animal",
	"fields": [
		{"name": "n_legs", "type": "long"},
		{"name": "animals", "type": ["null", "string"]},
		{"name": "weight", "type": "double"},
		{"name": "wild", "type": "boolean"},
		{"name": "seen", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

func encode(t *testing.T, schemaJSON string, rows []map[string]interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, formats.WriteAvro(&buf, schemaJSON, rows))
	return buf.Bytes()
}

func newAdapter(t *testing.T) *Adapter {
	t.Helper()
	return New(ingest.DefaultOptions(), zaptest.NewLogger(t))
}

func TestIngest(t *testing.T) {
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data := encode(t, animalSchema, []map[string]interface{}{
		{"n_legs": int64(2), "animals": goavro.Union("string", "Flamingo"), "weight": 3.5, "wild": true, "seen": seen},
		{"n_legs": int64(100), "animals": nil, "weight": 0.01, "wild": false, "seen": seen},
	})

	sch, store, err := newAdapter(t).Ingest(context.Background(), source.Avro{Data: data})
	require.NoError(t, err)
	defer store.Release()

	assert.Equal(t, []string{"n_legs", "animals", "weight", "wild", "seen"}, sch.Names())
	assert.Equal(t, []schema.DataType{schema.Integer, schema.String, schema.Float, schema.Boolean, schema.Datetime},
		[]schema.DataType{sch.Field(0).Type, sch.Field(1).Type, sch.Field(2).Type, sch.Field(3).Type, sch.Field(4).Type})
	assert.Equal(t, 2, store.NumRows())
	assert.Equal(t, []interface{}{int64(2), "Flamingo", 3.5, true, seen}, store.Row(0))
	assert.Nil(t, store.Value(1, 1))
}

func TestIngest_Malformed(t *testing.T) {
	_, _, err := newAdapter(t).Ingest(context.Background(), source.Avro{Data: []byte("Obj\x01garbage")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	assert.Contains(t, err.Error(), "Avro parse error")
}

func TestIngest_UnsupportedField(t *testing.T) {
	data := encode(t, `{"type":"record","name":"R","fields":[{"name":"tags","type":{"type":"array","items":"string"}}]}`,
		[]map[string]interface{}{{"tags": []interface{}{"a"}}})

	_, _, err := newAdapter(t).Ingest(context.Background(), source.Avro{Data: data})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	assert.Contains(t, err.Error(), `column "tags" has unsupported avro type array`)
}

func TestIngest_Empty(t *testing.T) {
	data := encode(t, `{"type":"record","name":"R","fields":[{"name":"id","type":"int"}]}`, nil)

	sch, store, err := newAdapter(t).Ingest(context.Background(), source.Avro{Data: data})
	require.NoError(t, err)
	defer store.Release()
	assert.Equal(t, []string{"id"}, sch.Names())
	assert.Equal(t, 0, store.NumRows())
}
