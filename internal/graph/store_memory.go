package graph

import (
	"context"
	"sync"

	id "trapper/pkg/domain"
	"trapper/pkg/requestcontext"
)

// InMemoryEdgeStore holds edges in per-entity adjacency slices.
type InMemoryEdgeStore struct {
	mu    sync.RWMutex
	edges map[id.EntityID][]Edge // indexed by both endpoints
}

func NewInMemoryEdgeStore() *InMemoryEdgeStore {
	return &InMemoryEdgeStore{edges: make(map[id.EntityID][]Edge)}
}

func (s *InMemoryEdgeStore) Append(ctx context.Context, edge Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = requestcontext.Now(ctx)
	}
	s.edges[edge.From] = append(s.edges[edge.From], edge)
	if edge.To != edge.From {
		s.edges[edge.To] = append(s.edges[edge.To], edge)
	}
	return nil
}

func (s *InMemoryEdgeStore) MergedInto(_ context.Context, entityID id.EntityID) (*id.EntityID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.edges[entityID] {
		if e.Type == id.EdgeMergedInto && e.From == entityID {
			target := e.To
			return &target, nil
		}
	}
	return nil, nil
}

func (s *InMemoryEdgeStore) MergedFrom(_ context.Context, entityID id.EntityID) ([]id.EntityID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.EntityID
	for _, e := range s.edges[entityID] {
		if e.Type == id.EdgeMergedInto && e.To == entityID {
			out = append(out, e.From)
		}
	}
	return out, nil
}

func (s *InMemoryEdgeStore) Edges(_ context.Context, entityID id.EntityID) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Edge, len(s.edges[entityID]))
	copy(out, s.edges[entityID])
	return out, nil
}
