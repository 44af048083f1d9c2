// Package registry maps query types to the text generators that serve them.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
)

// Registry manages the available generators.
// A generator registered for a query type wins over the fallback.
type Registry struct {
	mu       sync.RWMutex
	byType   map[domain.QueryType]ports.Generator
	fallback ports.Generator
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[domain.QueryType]ports.Generator),
	}
}

// Register binds a generator to a query type, replacing any previous one.
func (r *Registry) Register(qt domain.QueryType, gen ports.Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[qt] = gen
}

// SetFallback sets the generator used for query types without their own.
func (r *Registry) SetFallback(gen ports.Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = gen
}

// Lookup returns the generator serving qt.
func (r *Registry) Lookup(qt domain.QueryType) (ports.Generator, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if gen, ok := r.byType[qt]; ok {
		return gen, true
	}
	return r.fallback, r.fallback != nil
}

// Generate looks up the generator for req.QueryType and calls it.
func (r *Registry) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	gen, ok := r.Lookup(req.QueryType)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNoGenerator, req.QueryType)
	}
	return gen.Generate(ctx, req)
}

// Types returns the query types with a dedicated generator, sorted.
func (r *Registry) Types() []domain.QueryType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.QueryType, 0, len(r.byType))
	for qt := range r.byType {
		out = append(out, qt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
