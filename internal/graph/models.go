// Package graph is the append-only, directed identity-edge store and its
// traversal algorithms. Merges are recorded as edges, never as in-place
// deletion, so every automated decision stays explainable and conceptually
// reversible.
package graph

import (
	"time"

	id "trapper/pkg/domain"
)

// Edge is one directed, typed relationship between two entities of the same
// kind. Edges are append-only and timestamped.
type Edge struct {
	Kind       id.EntityKind
	From       id.EntityID
	To         id.EntityID
	Type       id.EdgeType
	Confidence float64
	// Note carries human-readable context, e.g. the shared phone that
	// produced a household edge.
	Note      string
	CreatedAt time.Time
}

// ClusterNode is one entity reached by a cluster traversal.
type ClusterNode struct {
	ID id.EntityID
	// Distance is the hop count from the traversal origin.
	Distance int
	// Path lists the edges walked from the origin to this node.
	Path []Edge
}
