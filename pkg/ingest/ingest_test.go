package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

type stubAdapter struct {
	kinds []source.Kind
	calls int32
	err   error
}

func (s *stubAdapter) Kinds() []source.Kind { return s.kinds }

func (s *stubAdapter) Ingest(ctx context.Context, src source.Source) (*schema.Schema, *columnar.Store, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, nil, s.err
	}
	sch, err := schema.Unify([]schema.Field{{Name: "a", Type: schema.Integer}})
	if err != nil {
		return nil, nil, err
	}
	store, err := Build(ctx, sch, 1, DefaultOptions(), func(b *columnar.Builder, col int) error {
		return b.Append(col, 1)
	})
	return sch, store, err
}

func TestDispatcher_Routes(t *testing.T) {
	csv := &stubAdapter{kinds: []source.Kind{source.KindCSV}}
	arrowish := &stubAdapter{kinds: []source.Kind{source.KindArrow, source.KindArrowIPC}}

	d, err := NewDispatcher(zaptest.NewLogger(t), csv, arrowish)
	require.NoError(t, err)
	assert.Equal(t, []source.Kind{source.KindArrow, source.KindArrowIPC, source.KindCSV}, d.Kinds())

	sch, store, err := d.Ingest(context.Background(), source.ArrowIPC{})
	require.NoError(t, err)
	defer store.Release()
	assert.Equal(t, []string{"a"}, sch.Names())
	assert.Equal(t, int32(0), atomic.LoadInt32(&csv.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&arrowish.calls))
}

func TestDispatcher_DuplicateKind(t *testing.T) {
	_, err := NewDispatcher(nil,
		&stubAdapter{kinds: []source.Kind{source.KindCSV}},
		&stubAdapter{kinds: []source.Kind{source.KindFrame, source.KindCSV}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestDispatcher_Rejects(t *testing.T) {
	d, err := NewDispatcher(nil, &stubAdapter{kinds: []source.Kind{source.KindCSV}})
	require.NoError(t, err)

	_, _, err = d.Ingest(context.Background(), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, _, err = d.Ingest(context.Background(), source.Records{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), `unsupported source kind "records"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = d.Ingest(ctx, source.CSV{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
}

func TestDispatcher_PassesErrorsThrough(t *testing.T) {
	want := errors.New(errors.ErrorTypeParse, "CSV parse error")
	d, err := NewDispatcher(nil, &stubAdapter{kinds: []source.Kind{source.KindCSV}, err: want})
	require.NoError(t, err)

	_, _, err = d.Ingest(context.Background(), source.CSV{})
	assert.Same(t, want, err)
}

func TestForEachColumn(t *testing.T) {
	t.Run("runs every column", func(t *testing.T) {
		var seen [8]int32
		err := ForEachColumn(context.Background(), len(seen), 3, func(col int) error {
			atomic.AddInt32(&seen[col], 1)
			return nil
		})
		require.NoError(t, err)
		for i := range seen {
			assert.Equal(t, int32(1), seen[i], "column %d", i)
		}
	})

	t.Run("first error wins", func(t *testing.T) {
		want := errors.New(errors.ErrorTypeTypeMismatch, "bad value")
		err := ForEachColumn(context.Background(), 4, 1, func(col int) error {
			if col == 1 {
				return want
			}
			return nil
		})
		assert.Same(t, want, err)
	})

	t.Run("lowest failing column wins", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			err := ForEachColumn(context.Background(), 8, 4, func(col int) error {
				if col == 2 || col == 5 || col == 6 {
					if col == 2 {
						time.Sleep(time.Millisecond)
					}
					return errors.Newf(errors.ErrorTypeTypeMismatch, "column %d", col)
				}
				return nil
			})
			require.Error(t, err)
			assert.Equal(t, "type_mismatch: column 2", err.Error())
		}
	})

	t.Run("cancelled before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var ran int32
		err := ForEachColumn(ctx, 4, 2, func(int) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
		assert.Equal(t, int32(0), ran)
	})

	t.Run("zero columns", func(t *testing.T) {
		assert.NoError(t, ForEachColumn(context.Background(), 0, 0, nil))
	})
}

func TestBuild_ReleasesOnFailure(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	opts := DefaultOptions()
	opts.Allocator = mem
	sch, err := schema.Unify([]schema.Field{{Name: "a", Type: schema.Integer}, {Name: "b", Type: schema.String}})
	require.NoError(t, err)

	store, err := Build(context.Background(), sch, 2, opts, func(b *columnar.Builder, col int) error {
		if col == 1 {
			return b.Append(col, 3.5)
		}
		return b.AppendColumn(col, []interface{}{1, 2})
	})
	require.Error(t, err)
	assert.Nil(t, store)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, ',', opts.Delimiter)
	assert.Greater(t, opts.Workers, 0)
	assert.NotEmpty(t, opts.DatetimeLayouts)
	assert.Len(t, opts.BuilderOptions(10), 1)

	opts.Allocator = memory.DefaultAllocator
	assert.Len(t, opts.BuilderOptions(10), 2)
}
