package graph

import (
	"context"

	id "trapper/pkg/domain"
)

// EdgeStore persists identity edges. Implementations only append and read;
// nothing ever updates or deletes an edge.
type EdgeStore interface {
	Append(ctx context.Context, edge Edge) error
	// MergedInto returns the forward merge target of an entity, if any.
	MergedInto(ctx context.Context, entityID id.EntityID) (*id.EntityID, error)
	// MergedFrom returns entities whose merged-into edge points at the given
	// entity (one reverse step of the alias closure).
	MergedFrom(ctx context.Context, entityID id.EntityID) ([]id.EntityID, error)
	// Edges returns all edges touching the entity, in either direction.
	Edges(ctx context.Context, entityID id.EntityID) ([]Edge, error)
}
