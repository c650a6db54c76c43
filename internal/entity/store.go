package entity

import (
	"context"

	id "trapper/pkg/domain"
)

// Store is the shared entity/identifier store.
//
// Concurrency contract: Create and AttachIdentifier enforce the
// (kind, identifier type, normalized value) uniqueness invariant among
// canonical entities at insert time and return sentinel.ErrConflict when
// another writer holds the value. The resolver retries a conflict once as a
// match attempt against the winner's identifier.
type Store interface {
	// Create inserts an entity with its identifiers atomically.
	Create(ctx context.Context, e *Entity, identifiers []Identifier) error
	// Get fetches one entity by ID.
	Get(ctx context.Context, entityID id.EntityID) (*Entity, error)
	// FindByIdentifier returns canonical records owning the normalized value.
	FindByIdentifier(ctx context.Context, kind id.EntityKind, idType id.IdentifierType, normalized string) ([]*Record, error)
	// AttachIdentifier adds an identifier to an existing entity. Attaching a
	// value the entity already owns is a no-op; a value owned by a different
	// canonical entity is ErrConflict.
	AttachIdentifier(ctx context.Context, entityID id.EntityID, ident Identifier) error
	// Identifiers lists an entity's identifiers.
	Identifiers(ctx context.Context, entityID id.EntityID) ([]Identifier, error)
	// MarkMerged marks the entity non-canonical with a forward pointer. The
	// graph records the corresponding merged-into edge; callers use both
	// inside one unit of work.
	MarkMerged(ctx context.Context, from, into id.EntityID) error
	// TransferIdentifiers moves all identifiers from one entity to another
	// (skeleton absorption).
	TransferIdentifiers(ctx context.Context, from, to id.EntityID) error
	// Promote clears the skeleton flag in place.
	Promote(ctx context.Context, entityID id.EntityID) error
	// RecordSeen updates provenance and recency after an auto-match.
	RecordSeen(ctx context.Context, entityID id.EntityID, source string) error
	// ListSkeletons pages through skeleton entities, oldest first.
	ListSkeletons(ctx context.Context, limit int) ([]*Entity, error)
	// ListCanonical pages through canonical entities of a kind for batch
	// scans; pass the last seen ID (or zero) as the cursor.
	ListCanonical(ctx context.Context, kind id.EntityKind, after id.EntityID, limit int) ([]*Record, error)
}
