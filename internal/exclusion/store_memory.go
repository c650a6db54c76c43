package exclusion

import (
	"context"
	"sync"

	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
	"trapper/pkg/requestcontext"
)

// InMemoryRuleStore holds rules and audit rows under a RWMutex.
type InMemoryRuleStore struct {
	mu      sync.RWMutex
	rules   map[id.RuleID]*Rule
	changes []*RuleChange
}

func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{rules: make(map[id.RuleID]*Rule)}
}

func (s *InMemoryRuleStore) ListActive(_ context.Context) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Active {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryRuleStore) Append(ctx context.Context, rule *Rule, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := requestcontext.Now(ctx)
	copied := *rule
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	s.rules[copied.ID] = &copied
	s.changes = append(s.changes, &RuleChange{
		RuleID:    copied.ID,
		Action:    "create",
		Actor:     actor,
		Detail:    string(copied.Stage) + " " + string(copied.Match) + " " + copied.Pattern,
		ChangedAt: now,
	})
	return nil
}

func (s *InMemoryRuleStore) Deactivate(ctx context.Context, ruleID id.RuleID, actor, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := requestcontext.Now(ctx)
	rule.Active = false
	rule.UpdatedAt = now
	s.changes = append(s.changes, &RuleChange{
		RuleID:    ruleID,
		Action:    "deactivate",
		Actor:     actor,
		Detail:    reason,
		ChangedAt: now,
	})
	return nil
}

func (s *InMemoryRuleStore) Changes(_ context.Context, limit int) ([]*RuleChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RuleChange, 0, limit)
	for i := len(s.changes) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *s.changes[i]
		out = append(out, &copied)
	}
	return out, nil
}

type blacklistKey struct {
	idType     id.IdentifierType
	normalized string
}

// InMemoryBlacklistStore holds blacklisted identifier values.
type InMemoryBlacklistStore struct {
	mu      sync.RWMutex
	entries map[blacklistKey]string
}

func NewInMemoryBlacklistStore() *InMemoryBlacklistStore {
	return &InMemoryBlacklistStore{entries: make(map[blacklistKey]string)}
}

func (s *InMemoryBlacklistStore) IsBlacklisted(_ context.Context, idType id.IdentifierType, normalized string) (bool, error) {
	if normalized == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[blacklistKey{idType, normalized}]
	return ok, nil
}

func (s *InMemoryBlacklistStore) Add(_ context.Context, idType id.IdentifierType, normalized, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[blacklistKey{idType, normalized}] = reason
	return nil
}
