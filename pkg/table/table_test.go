package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

func newStore(t *testing.T) *columnar.Store {
	t.Helper()
	sch, err := schema.Unify(
		[]schema.Field{{Name: "a", Type: schema.Integer}, {Name: "b", Type: schema.String}},
		schema.Field{Name: "index", Type: schema.Integer},
	)
	require.NoError(t, err)

	b := columnar.NewBuilder(sch)
	require.NoError(t, b.AppendColumn(0, []interface{}{1, 2}))
	require.NoError(t, b.AppendColumn(1, []interface{}{"x", "y"}))
	require.NoError(t, b.AppendColumn(2, []interface{}{0, 1}))
	store, err := b.Finish()
	require.NoError(t, err)
	t.Cleanup(store.Release)
	return store
}

func TestTable(t *testing.T) {
	tbl := New("animals", source.KindFrame, newStore(t))

	assert.Equal(t, "animals", tbl.Name())
	assert.Equal(t, source.KindFrame, tbl.Source())
	assert.Equal(t, 2, tbl.NumRows())
	assert.False(t, tbl.Created().IsZero())

	cols := tbl.Columns()
	assert.Equal(t, []string{"a", "b", "index"}, cols)
	cols[0] = "mutated"
	assert.Equal(t, []string{"a", "b", "index"}, tbl.Columns(), "Columns must return a copy")
}

func TestInfo(t *testing.T) {
	tbl := New("animals", source.KindFrame, newStore(t))
	info := tbl.Info()

	assert.Equal(t, "animals", info.Name)
	assert.Equal(t, source.KindFrame, info.Source)
	assert.Equal(t, 2, info.NumRows)
	assert.Equal(t, tbl.Columns(), info.Columns())
	assert.True(t, info.Schema().Equal(tbl.Schema()))
	assert.True(t, info.Fields[2].Synthetic)
}
