// Package entity holds the shared entity/identifier store the resolution
// engine operates on. Entities are never physically deleted: a merge marks
// the loser non-canonical and forwards it via MergedInto.
package entity

import (
	"time"

	id "trapper/pkg/domain"
)

// Entity is one person, place, or animal.
// Invariant: when MergedInto is set the entity is non-canonical and must not
// be the target of new links; consumers resolve through graph.Canonicalize
// first.
type Entity struct {
	ID          id.EntityID
	Kind        id.EntityKind
	DisplayName string
	// AddressNorm is the normalized postal address, kept on the entity for
	// tie-break scoring and tier-4 duplicate context.
	AddressNorm string
	// Source is the provenance tag: the upstream system that produced or most
	// recently enriched this entity.
	Source    string
	Canonical bool
	// Skeleton marks a provisional person created from a trusted source with
	// a name but no verifiable contact identifier.
	Skeleton   bool
	MergedInto *id.EntityID
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// LastSeenAt is the most recent upstream record timestamp, used as the
	// recency tie-break between equally scored candidates.
	LastSeenAt time.Time
}

// Identifier is a typed contact value owned by exactly one person at a time.
type Identifier struct {
	EntityID   id.EntityID
	Type       id.IdentifierType
	Raw        string
	Normalized string
	Source     string
	Confidence float64
	CreatedAt  time.Time
}

// Record bundles an entity with its identifiers; the shape candidate
// retrieval returns to the scorer.
type Record struct {
	Entity      Entity
	Identifiers []Identifier
}

// Identifier returns the record's normalized value for the given type, or "".
func (r *Record) Identifier(t id.IdentifierType) string {
	for _, ident := range r.Identifiers {
		if ident.Type == t {
			return ident.Normalized
		}
	}
	return ""
}
