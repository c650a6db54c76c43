package entity

import (
	"context"
	"sort"
	"sync"

	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
	"trapper/pkg/requestcontext"
)

type identifierKey struct {
	kind       id.EntityKind
	idType     id.IdentifierType
	normalized string
}

// InMemoryStore mirrors the Postgres store's uniqueness semantics under a
// single mutex: the owners index plays the role of the partial unique index
// over canonical identifiers.
type InMemoryStore struct {
	mu          sync.Mutex
	entities    map[id.EntityID]*Entity
	identifiers map[id.EntityID][]Identifier
	owners      map[identifierKey]id.EntityID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entities:    make(map[id.EntityID]*Entity),
		identifiers: make(map[id.EntityID][]Identifier),
		owners:      make(map[identifierKey]id.EntityID),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, e *Entity, identifiers []Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every identifier before inserting anything so a conflict leaves
	// no partial state, matching the transactional Postgres behavior.
	for _, ident := range identifiers {
		key := identifierKey{e.Kind, ident.Type, ident.Normalized}
		if owner, taken := s.owners[key]; taken && owner != e.ID {
			return sentinel.ErrConflict
		}
	}

	now := requestcontext.Now(ctx)
	copied := *e
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	if copied.LastSeenAt.IsZero() {
		copied.LastSeenAt = now
	}
	s.entities[copied.ID] = &copied

	for _, ident := range identifiers {
		ident.EntityID = copied.ID
		if ident.CreatedAt.IsZero() {
			ident.CreatedAt = now
		}
		s.identifiers[copied.ID] = append(s.identifiers[copied.ID], ident)
		if copied.Canonical {
			s.owners[identifierKey{copied.Kind, ident.Type, ident.Normalized}] = copied.ID
		}
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, entityID id.EntityID) (*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *InMemoryStore) FindByIdentifier(_ context.Context, kind id.EntityKind, idType id.IdentifierType, normalized string) ([]*Record, error) {
	if normalized == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.owners[identifierKey{kind, idType, normalized}]
	if !ok {
		return nil, nil
	}
	e, ok := s.entities[owner]
	if !ok || !e.Canonical {
		return nil, nil
	}
	return []*Record{s.recordLocked(e)}, nil
}

func (s *InMemoryStore) AttachIdentifier(ctx context.Context, entityID id.EntityID, ident Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return sentinel.ErrNotFound
	}

	key := identifierKey{e.Kind, ident.Type, ident.Normalized}
	if owner, taken := s.owners[key]; taken {
		if owner == entityID {
			return nil
		}
		return sentinel.ErrConflict
	}

	now := requestcontext.Now(ctx)
	ident.EntityID = entityID
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = now
	}
	s.identifiers[entityID] = append(s.identifiers[entityID], ident)
	if e.Canonical {
		s.owners[key] = entityID
	}
	e.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) Identifiers(_ context.Context, entityID id.EntityID) ([]Identifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Identifier, len(s.identifiers[entityID]))
	copy(out, s.identifiers[entityID])
	return out, nil
}

func (s *InMemoryStore) MarkMerged(ctx context.Context, from, into id.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[from]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.entities[into]; !ok {
		return sentinel.ErrNotFound
	}
	if e.MergedInto != nil {
		return sentinel.ErrInvalidState
	}

	target := into
	e.MergedInto = &target
	e.Canonical = false
	e.UpdatedAt = requestcontext.Now(ctx)

	// Release the loser's identifier claims; its values may now be attached
	// to the winner.
	for _, ident := range s.identifiers[from] {
		key := identifierKey{e.Kind, ident.Type, ident.Normalized}
		if s.owners[key] == from {
			delete(s.owners, key)
		}
	}
	return nil
}

func (s *InMemoryStore) TransferIdentifiers(ctx context.Context, from, to id.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.entities[from]
	if !ok {
		return sentinel.ErrNotFound
	}
	dst, ok := s.entities[to]
	if !ok {
		return sentinel.ErrNotFound
	}

	now := requestcontext.Now(ctx)
	for _, ident := range s.identifiers[from] {
		if dst.Canonical {
			key := identifierKey{dst.Kind, ident.Type, ident.Normalized}
			if owner, taken := s.owners[key]; taken && owner != to && owner != from {
				continue // value already claimed elsewhere; leave for cleanup
			}
			s.owners[key] = to
		}
		ident.EntityID = to
		s.identifiers[to] = append(s.identifiers[to], ident)
	}
	s.identifiers[from] = nil
	src.UpdatedAt = now
	dst.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) Promote(ctx context.Context, entityID id.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.Skeleton = false
	e.UpdatedAt = requestcontext.Now(ctx)
	return nil
}

func (s *InMemoryStore) RecordSeen(ctx context.Context, entityID id.EntityID, sourceSystem string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	now := requestcontext.Now(ctx)
	e.Source = sourceSystem
	e.LastSeenAt = now
	e.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) ListSkeletons(_ context.Context, limit int) ([]*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Entity
	for _, e := range s.entities {
		if e.Skeleton && e.Canonical {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListCanonical(_ context.Context, kind id.EntityKind, after id.EntityID, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*Entity
	for _, e := range s.entities {
		if e.Kind == kind && e.Canonical {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.Less(all[j].ID) })

	var out []*Record
	for _, e := range all {
		if !after.IsZero() && !after.Less(e.ID) {
			continue
		}
		out = append(out, s.recordLocked(e))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) recordLocked(e *Entity) *Record {
	rec := &Record{Entity: *e}
	rec.Identifiers = make([]Identifier, len(s.identifiers[e.ID]))
	copy(rec.Identifiers, s.identifiers[e.ID])
	return rec
}
