// Package calculation defines the contract shared by every derived-metric
// calculator and the registry the scheduler uses to find them.
package calculation

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Calculator recomputes one derived collection from its watched sources.
//
// Run must be idempotent: repeating it over unchanged sources rewrites
// identical records. A single malformed input is logged and skipped, never
// returned; only failures to persist results are returned, and the caller
// retries the whole run.
type Calculator interface {
	Name() string
	WatchedCollections() []string
	Run(ctx context.Context) error
}

// Registry holds calculators by name.
type Registry struct {
	mu          sync.RWMutex
	calculators map[string]Calculator
	order       []string
}

// NewRegistry creates a registry holding calcs.
func NewRegistry(calcs ...Calculator) (*Registry, error) {
	r := &Registry{calculators: make(map[string]Calculator)}
	for _, c := range calcs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c. Names must be unique and every calculator must watch at
// least one collection.
func (r *Registry) Register(c Calculator) error {
	if c == nil || c.Name() == "" {
		return ErrInvalidCalculator
	}
	if len(c.WatchedCollections()) == 0 {
		return fmt.Errorf("%w: %s watches no collections", ErrInvalidCalculator, c.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.calculators[c.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCalculator, c.Name())
	}
	r.calculators[c.Name()] = c
	r.order = append(r.order, c.Name())
	return nil
}

// Get returns the calculator registered under name.
func (r *Registry) Get(name string) (Calculator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calculators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCalculator, name)
	}
	return c, nil
}

// Watching returns the calculators that must run when collection changes,
// in registration order.
func (r *Registry) Watching(collection string) []Calculator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Calculator
	for _, name := range r.order {
		c := r.calculators[name]
		if slices.Contains(c.WatchedCollections(), collection) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns registered calculator names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
