package resolve

import (
	"context"
	"sort"
	"sync"

	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
	"trapper/pkg/requestcontext"
)

// InMemoryDecisionStore holds the decision log in a map. Unit tests only.
type InMemoryDecisionStore struct {
	mu        sync.RWMutex
	decisions map[id.DecisionID]*MatchDecision
}

func NewInMemoryDecisionStore() *InMemoryDecisionStore {
	return &InMemoryDecisionStore{decisions: make(map[id.DecisionID]*MatchDecision)}
}

func (s *InMemoryDecisionStore) Append(ctx context.Context, d *MatchDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = requestcontext.Now(ctx)
	}
	copied := *d
	s.decisions[d.ID] = &copied
	return nil
}

func (s *InMemoryDecisionStore) Get(_ context.Context, decisionID id.DecisionID) (*MatchDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[decisionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *InMemoryDecisionStore) ListByStatus(_ context.Context, status ReviewStatus, limit int) ([]*MatchDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*MatchDecision
	for _, d := range s.decisions {
		if d.ReviewStatus != status {
			continue
		}
		copied := *d
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryDecisionStore) UpdateReview(ctx context.Context, decisionID id.DecisionID, status ReviewStatus, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[decisionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if d.ReviewStatus != ReviewPending {
		return sentinel.ErrInvalidState
	}
	now := requestcontext.Now(ctx)
	d.ReviewStatus = status
	d.ReviewedBy = actor
	d.ReviewedAt = &now
	return nil
}
