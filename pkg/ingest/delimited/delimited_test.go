package delimited

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/ingest"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

func newAdapter(t *testing.T) *Adapter {
	t.Helper()
	return New(ingest.DefaultOptions(), zaptest.NewLogger(t))
}

func TestIngest_GoodCSV(t *testing.T) {
	sch, store, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "a,b,c\n1,2,3\n"})
	require.NoError(t, err)
	defer store.Release()

	assert.Equal(t, []string{"a", "b", "c"}, sch.Names())
	assert.Equal(t, 1, store.NumRows())
	for i := 0; i < 3; i++ {
		assert.Equal(t, schema.Integer, sch.Field(i).Type)
	}
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, store.Row(0))
}

func TestIngest_ShortRow(t *testing.T) {
	_, store, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "a,b,c\n1,2"})
	require.Error(t, err)
	assert.Nil(t, store)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	assert.Contains(t, err.Error(), "CSV parse error")
}

func TestIngest_LongRow(t *testing.T) {
	_, _, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "a,b\n1,2\n3,4,5\n"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	assert.Contains(t, err.Error(), "CSV parse error")
}

func TestIngest_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "\n\n"} {
		_, _, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: text})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
		assert.Contains(t, err.Error(), "CSV parse error")
	}
}

func TestIngest_HeaderOnly(t *testing.T) {
	sch, store, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "x,y\n"})
	require.NoError(t, err)
	defer store.Release()

	assert.Equal(t, []string{"x", "y"}, sch.Names())
	assert.Equal(t, schema.String, sch.Field(0).Type)
	assert.Equal(t, 0, store.NumRows())
}

func TestIngest_DuplicateHeader(t *testing.T) {
	_, _, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "a,a\n1,2\n"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestIngest_InvalidUTF8(t *testing.T) {
	_, _, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "h\xff\n1\n"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
	assert.Equal(t, `schema: column name "h\xff" is not valid UTF-8`, err.Error())

	// cell bytes are stored as given
	_, store, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "h\nx\xffy\n"})
	require.NoError(t, err)
	defer store.Release()
	assert.Equal(t, "x\xffy", store.Value(0, 0))
}

func TestIngest_InferenceAndNulls(t *testing.T) {
	text := "id,price,ok,day,at,label\n" +
		"1,1.5,true,2024-01-02,2024-01-02 10:00:00,x\n" +
		",2,false,2024-01-03,2024-01-03T11:30:00Z,\n"

	sch, store, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: text})
	require.NoError(t, err)
	defer store.Release()

	want := []schema.DataType{schema.Integer, schema.Float, schema.Boolean, schema.Date, schema.Datetime, schema.String}
	for i, typ := range want {
		assert.Equal(t, typ, sch.Field(i).Type, "column %s", sch.Field(i).Name)
	}

	assert.Nil(t, store.Value(1, 0))
	assert.Equal(t, 2.0, store.Value(1, 1))
	assert.Equal(t, false, store.Value(1, 2))
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), store.Value(1, 3))
	assert.Equal(t, time.Date(2024, 1, 3, 11, 30, 0, 0, time.UTC), store.Value(1, 4))
	assert.Equal(t, "", store.Value(1, 5))
}

func TestIngest_QuotingAndDelimiters(t *testing.T) {
	t.Run("quoted fields", func(t *testing.T) {
		sch, store, err := newAdapter(t).Ingest(context.Background(),
			source.CSV{Text: "name,note\n\"Smith, J\",\"said \"\"hi\"\"\"\n"})
		require.NoError(t, err)
		defer store.Release()
		assert.Equal(t, []string{"name", "note"}, sch.Names())
		assert.Equal(t, []interface{}{"Smith, J", `said "hi"`}, store.Row(0))
	})

	t.Run("tsv", func(t *testing.T) {
		sch, store, err := newAdapter(t).Ingest(context.Background(), source.TSV("a\tb\n1\t2\n"))
		require.NoError(t, err)
		defer store.Release()
		assert.Equal(t, []string{"a", "b"}, sch.Names())
	})

	t.Run("configured default delimiter", func(t *testing.T) {
		opts := ingest.DefaultOptions()
		opts.Delimiter = ';'
		sch, store, err := New(opts, nil).Ingest(context.Background(), source.CSV{Text: "a;b\n1;2\n"})
		require.NoError(t, err)
		defer store.Release()
		assert.Equal(t, []string{"a", "b"}, sch.Names())
	})

	t.Run("byte order mark", func(t *testing.T) {
		sch, store, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "\ufeffa,b\n1,2\n"})
		require.NoError(t, err)
		defer store.Release()
		assert.Equal(t, "a", sch.Field(0).Name)
	})

	t.Run("unterminated quote", func(t *testing.T) {
		_, _, err := newAdapter(t).Ingest(context.Background(), source.CSV{Text: "a,b\n\"1,2\n"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CSV parse error")
	})
}

func TestIngest_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, store, err := newAdapter(t).Ingest(ctx, source.CSV{Text: "a\n1\n"})
	require.Error(t, err)
	assert.Nil(t, store)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
}

func TestIngest_ReleasesOnFailure(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	opts := ingest.DefaultOptions()
	opts.Allocator = mem
	a := New(opts, nil)

	_, store, err := a.Ingest(context.Background(), source.CSV{Text: "a,b\n1,x\n2,y\n"})
	require.NoError(t, err)
	store.Release()

	_, _, err = a.Ingest(context.Background(), source.CSV{Text: "a,a\n1,2\n"})
	require.Error(t, err)
}

func TestIngest_WrongSource(t *testing.T) {
	_, _, err := newAdapter(t).Ingest(context.Background(), source.Records{Data: []byte("[]")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}
