package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/lumen/pkg/errors"
)

func TestCollector_ObserveIngest(t *testing.T) {
	c := NewCollector("test")

	c.ObserveIngest("csv", 3, time.Millisecond, nil)
	c.ObserveIngest("csv", 2, time.Millisecond, nil)
	c.ObserveIngest("csv", 0, time.Millisecond, errors.New(errors.ErrorTypeParse, "CSV parse error"))
	c.ObserveIngest("frame", 0, time.Millisecond, errors.New(errors.ErrorTypeSchema, "bad"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tablesCreated.WithLabelValues("csv")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.rowsIngested.WithLabelValues("csv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ingestFailures.WithLabelValues("csv", "parse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ingestFailures.WithLabelValues("frame", "schema")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.ingestDuration))
}

func TestCollector_Exposition(t *testing.T) {
	c := NewCollector("analytics")
	c.SetTablesRegistered(4)

	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(`
# HELP lumen_tables_registered Number of tables currently registered
# TYPE lumen_tables_registered gauge
lumen_tables_registered{server="analytics"} 4
`), "lumen_tables_registered")
	require.NoError(t, err)
}

func TestCollector_Independent(t *testing.T) {
	a, b := NewCollector("a"), NewCollector("b")
	a.ObserveRequest("create_table", nil)
	a.ObserveRequest("create_table", errors.New(errors.ErrorTypeNameInUse, "taken"))

	assert.Equal(t, 1.0, testutil.ToFloat64(a.requests.WithLabelValues("create_table", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.requests.WithLabelValues("create_table", "name_in_use")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.requests))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	first := timer.Stop()
	assert.GreaterOrEqual(t, first, time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), first)
}
