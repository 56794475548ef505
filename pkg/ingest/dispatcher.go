package ingest

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/columnar"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/schema"
	"github.com/ajitpratap0/lumen/pkg/source"
)

// Dispatcher routes every source kind to the adapter registered for it.
type Dispatcher struct {
	adapters map[source.Kind]Adapter
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher with the given adapters registered.
func NewDispatcher(logger *zap.Logger, adapters ...Adapter) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		adapters: make(map[source.Kind]Adapter),
		logger:   logger.With(zap.String("component", "ingest_dispatcher")),
	}
	for _, a := range adapters {
		if err := d.Register(a); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Register adds an adapter for each of its kinds. A kind can have only one
// adapter.
func (d *Dispatcher) Register(a Adapter) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, k := range a.Kinds() {
		if _, exists := d.adapters[k]; exists {
			return errors.Newf(errors.ErrorTypeInternal, "adapter for %s sources already registered", k)
		}
	}
	for _, k := range a.Kinds() {
		d.adapters[k] = a
		d.logger.Debug("adapter registered", zap.String("kind", string(k)))
	}
	return nil
}

// Kinds returns the registered source kinds, sorted.
func (d *Dispatcher) Kinds() []source.Kind {
	d.mu.RLock()
	defer d.mu.RUnlock()

	kinds := make([]source.Kind, 0, len(d.adapters))
	for k := range d.adapters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Ingest hands src to its adapter. A nil source or an unregistered kind is
// a validation error; adapter errors are returned unchanged.
func (d *Dispatcher) Ingest(ctx context.Context, src source.Source) (*schema.Schema, *columnar.Store, error) {
	if src == nil {
		return nil, nil, errors.New(errors.ErrorTypeValidation, "no source given")
	}

	d.mu.RLock()
	a, ok := d.adapters[src.Kind()]
	d.mu.RUnlock()
	if !ok {
		return nil, nil, errors.Newf(errors.ErrorTypeValidation, "unsupported source kind %q", src.Kind()).
			WithDetail("kind", string(src.Kind()))
	}

	if err := CheckContext(ctx); err != nil {
		return nil, nil, err
	}
	return a.Ingest(ctx, src)
}
