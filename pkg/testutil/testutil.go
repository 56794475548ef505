// Package testutil provides fixtures and suites shared by Lumen's tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/lumen/pkg/source"
)

// AnimalsCSV is the delimited-text form of the animals fixture.
const AnimalsCSV = "n_legs,animals\n2,Flamingo\n4,Horse\n5,Brittle stars\n100,Centipede\n"

// AnimalsRecords is the JSON records form of the animals fixture.
const AnimalsRecords = `[{"n_legs":2,"animals":"Flamingo"},{"n_legs":4,"animals":"Horse"},` +
	`{"n_legs":5,"animals":"Brittle stars"},{"n_legs":100,"animals":"Centipede"}]`

// AnimalLegs and AnimalNames are the columns of the animals fixture.
var (
	AnimalLegs  = []int64{2, 4, 5, 100}
	AnimalNames = []string{"Flamingo", "Horse", "Brittle stars", "Centipede"}
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a context with a 30-second timeout, cancelled when
// the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// AnimalsArrow returns the animals fixture as named Arrow arrays allocated
// from mem. The arrays are released when the test completes.
func AnimalsArrow(t *testing.T, mem memory.Allocator) source.Arrow {
	t.Helper()
	return NamedArrays(t, mem, AnimalLegs, AnimalNames)
}

// NamedArrays builds an n_legs/animals batch from arbitrary, possibly
// unequal, columns.
func NamedArrays(t *testing.T, mem memory.Allocator, legs []int64, names []string) source.Arrow {
	t.Helper()
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	lb := array.NewInt64Builder(mem)
	defer lb.Release()
	lb.AppendValues(legs, nil)
	nb := array.NewStringBuilder(mem)
	defer nb.Release()
	nb.AppendValues(names, nil)

	l, n := lb.NewArray(), nb.NewArray()
	t.Cleanup(func() {
		l.Release()
		n.Release()
	})
	return source.Arrow{Names: []string{"n_legs", "animals"}, Arrays: []arrow.Array{l, n}}
}

// AnimalsFrame returns the animals fixture as a row-major labeled frame.
func AnimalsFrame() source.Frame {
	rows := make([][]interface{}, len(AnimalLegs))
	for i := range rows {
		rows[i] = []interface{}{AnimalLegs[i], AnimalNames[i]}
	}
	return source.Frame{Columns: []string{"n_legs", "animals"}, Rows: rows}
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
