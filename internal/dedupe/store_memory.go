package dedupe

import (
	"context"
	"sort"
	"sync"

	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
	"trapper/pkg/requestcontext"
)

type pairKey struct {
	kind id.EntityKind
	a, b id.EntityID
}

// InMemoryStore holds duplicate candidates keyed by ordered pair.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.CandidateID]*Candidate
	pairs map[pairKey]id.CandidateID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.CandidateID]*Candidate),
		pairs: make(map[pairKey]id.CandidateID),
	}
}

func (s *InMemoryStore) Upsert(ctx context.Context, c *Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := requestcontext.Now(ctx)

	key := pairKey{kind: c.Kind, a: c.EntityA, b: c.EntityB}
	if existingID, ok := s.pairs[key]; ok {
		existing := s.byID[existingID]
		if existing.Status != StatusPending {
			return nil
		}
		if c.Tier < existing.Tier {
			existing.Tier = c.Tier
			existing.Reason = c.Reason
		}
		if c.Confidence > existing.Confidence {
			existing.Confidence = c.Confidence
		}
		existing.UpdatedAt = now
		return nil
	}

	copied := *c
	copied.CreatedAt = now
	copied.UpdatedAt = now
	s.byID[copied.ID] = &copied
	s.pairs[key] = copied.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, candidateID id.CandidateID) (*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Candidate
	for _, c := range s.byID {
		if c.Status != status {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, candidateID id.CandidateID, status Status, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[candidateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Status != StatusPending {
		return sentinel.ErrInvalidState
	}
	now := requestcontext.Now(ctx)
	c.Status = status
	c.ResolvedBy = actor
	c.ResolvedAt = &now
	c.UpdatedAt = now
	return nil
}
