// Package ingest turns a source.Source into a unified schema and an
// immutable columnar store.
//
// Each source kind is handled by exactly one Adapter. Adapters live in the
// subpackages (delimited, arrowbatch, avro, frame, records) and are
// registered with a Dispatcher, which is what the server calls.
//
// Adapters fail fast and atomically: on error no store is returned and
// every buffer allocated for the attempt has been released. Errors are
// classified *errors.Error values and are passed through unchanged.
package ingest

import (
	"context"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/config"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

// Adapter converts sources of one or more kinds into a columnar store.
type Adapter interface {
	// Kinds lists the source kinds the adapter handles
	Kinds() []source.Kind
	// Ingest builds a store from src
	Ingest(ctx context.Context, src source.Source) (*schema.Schema, *columnar.Store, error)
}

// Options are shared by all adapters.
type Options struct {
	// Delimiter is used by CSV sources that do not set one
	Delimiter rune
	// Workers bounds per-column parallelism
	Workers int
	// DatetimeLayouts are tried in order when inferring datetime columns
	DatetimeLayouts []string
	// Allocator backs every store; nil uses the Go heap
	Allocator memory.Allocator
}

// DefaultOptions returns the options of a default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.NewConfig("lumen").Ingest)
}

// OptionsFromConfig derives adapter options from the ingest section.
func OptionsFromConfig(cfg config.IngestConfig) Options {
	return Options{
		Delimiter:       cfg.DelimiterRune(),
		Workers:         cfg.GetWorkers(),
		DatetimeLayouts: cfg.GetDatetimeLayouts(),
	}
}

// BuilderOptions returns the columnar builder options for n rows.
func (o Options) BuilderOptions(n int) []columnar.BuilderOption {
	opts := []columnar.BuilderOption{columnar.WithCapacity(n)}
	if o.Allocator != nil {
		opts = append(opts, columnar.WithAllocator(o.Allocator))
	}
	return opts
}

// CheckContext reports a cancelled or expired context as an unavailable
// error.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeUnavailable, "ingestion cancelled")
	}
	return nil
}

// ForEachColumn runs fn for columns 0..n-1 on at most workers goroutines.
// The context is checked before each column starts; a column that has
// started always finishes. When several columns fail, the error of the
// lowest column wins, so the result does not depend on scheduling.
func ForEachColumn(ctx context.Context, n, workers int, fn func(col int) error) error {
	if workers <= 0 {
		workers = 1
	}

	errs := make([]error, n)
	var lowest atomic.Int64 // lowest failed column so far
	lowest.Store(int64(n))

	var g errgroup.Group
	g.SetLimit(workers)
	started := 0
	for col := 0; col < n; col++ {
		col := col
		// columns above a failure cannot change the result
		if ctx.Err() != nil || lowest.Load() < int64(col) {
			break
		}
		started++
		g.Go(func() error {
			if err := CheckContext(ctx); err != nil {
				errs[col] = err
				return nil
			}
			if err := fn(col); err != nil {
				errs[col] = err
				for {
					cur := lowest.Load()
					if int64(col) >= cur || lowest.CompareAndSwap(cur, int64(col)) {
						break
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if started < n {
		return CheckContext(ctx)
	}
	return nil
}

// Build creates a store for s by filling each column with fill, in
// parallel. On any failure the builder is released and no store is
// returned.
func Build(ctx context.Context, s *schema.Schema, rows int, opts Options, fill func(b *columnar.Builder, col int) error) (*columnar.Store, error) {
	b := columnar.NewBuilder(s, opts.BuilderOptions(rows)...)
	if err := ForEachColumn(ctx, s.Len(), opts.Workers, func(col int) error {
		return fill(b, col)
	}); err != nil {
		b.Release()
		return nil, err
	}
	return b.Finish()
}

// Mismatch reports that adapter got a source it does not handle.
func Mismatch(adapter string, src source.Source) error {
	return errors.Newf(errors.ErrorTypeInternal, "%s adapter cannot ingest %s sources", adapter, src.Kind())
}
