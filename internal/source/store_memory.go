package source

import (
	"context"
	"sync"

	"trapper/pkg/platform/sentinel"
)

// InMemoryRegistry holds sources in a map. Used by unit tests and as the
// seed-data registry in single-node deployments.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	sources map[string]*Source
}

func NewInMemory(sources ...Source) *InMemoryRegistry {
	r := &InMemoryRegistry{sources: make(map[string]*Source, len(sources))}
	for i := range sources {
		s := sources[i]
		r.sources[s.System] = &s
	}
	return r
}

func (r *InMemoryRegistry) Get(_ context.Context, system string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sources[system]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

func (r *InMemoryRegistry) List(_ context.Context) ([]*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Source, 0, len(r.sources))
	for _, s := range r.sources {
		copied := *s
		out = append(out, &copied)
	}
	return out, nil
}

// Put inserts or replaces a source. Operator tooling only.
func (r *InMemoryRegistry) Put(_ context.Context, s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.System] = &s
	return nil
}
