package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	id "trapper/pkg/domain"
)

// MaxMergeHops bounds merge-chain traversal. Chains deeper than this are
// treated as data-entry mistakes (a cycle), not legitimate history.
const MaxMergeHops = 10

// DefaultClusterHops bounds cluster retrieval when the caller passes 0.
const DefaultClusterHops = 3

// ErrCycleGuard reports that a merge-chain walk exceeded its hop bound.
// Callers log it and treat the entity as having no canonical resolution
// rather than looping forever.
var ErrCycleGuard = errors.New("merge chain exceeded hop bound")

// CanonicalCache caches merge-chain resolution. Implementations must be safe
// for concurrent use; a nil cache disables caching.
type CanonicalCache interface {
	Get(ctx context.Context, entityID id.EntityID) (id.EntityID, bool)
	Put(ctx context.Context, entityID, canonical id.EntityID)
	Invalidate(ctx context.Context, entityID id.EntityID)
}

// Graph exposes the identity-graph algorithms over an edge store.
type Graph struct {
	store  EdgeStore
	cache  CanonicalCache
	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithCache sets the canonical-resolution cache.
func WithCache(cache CanonicalCache) Option {
	return func(g *Graph) { g.cache = cache }
}

// WithLogger sets the graph logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) { g.logger = logger }
}

// New constructs a Graph over the given edge store.
func New(store EdgeStore, opts ...Option) (*Graph, error) {
	if store == nil {
		return nil, fmt.Errorf("edge store is required")
	}
	g := &Graph{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Append records one edge. Merge edges should go through RecordMerge so
// cached resolutions stay coherent.
func (g *Graph) Append(ctx context.Context, edge Edge) error {
	return g.store.Append(ctx, edge)
}

// Canonicalize follows merged-into edges forward until no further edge
// exists and returns the terminal entity. Canonical entities are fixed
// points: Canonicalize(e) == e. The walk is an explicit loop with a visited
// set and a hard hop bound, never unbounded recursion.
func (g *Graph) Canonicalize(ctx context.Context, entityID id.EntityID) (id.EntityID, error) {
	if g.cache != nil {
		if canonical, ok := g.cache.Get(ctx, entityID); ok {
			return canonical, nil
		}
	}

	current := entityID
	visited := map[id.EntityID]bool{current: true}
	// One extra iteration past the bound so a chain of exactly MaxMergeHops
	// edges can observe its terminal entity.
	for hop := 0; hop <= MaxMergeHops; hop++ {
		next, err := g.store.MergedInto(ctx, current)
		if err != nil {
			return id.EntityID{}, fmt.Errorf("canonicalize %s: %w", entityID, err)
		}
		if next == nil {
			if g.cache != nil && current != entityID {
				g.cache.Put(ctx, entityID, current)
			}
			return current, nil
		}
		if visited[*next] {
			g.logger.Error("merge cycle detected",
				"entity_id", entityID.String(),
				"at", next.String(),
			)
			return id.EntityID{}, ErrCycleGuard
		}
		visited[*next] = true
		current = *next
	}

	g.logger.Error("merge chain exceeded hop bound",
		"entity_id", entityID.String(),
		"max_hops", MaxMergeHops,
	)
	return id.EntityID{}, ErrCycleGuard
}

// Cluster traverses all edge types bidirectionally from a starting entity up
// to maxHops, returning every reachable entity with its hop distance and the
// edge path that reached it. Nodes are deduplicated; the first (shortest)
// path wins.
func (g *Graph) Cluster(ctx context.Context, start id.EntityID, maxHops int) ([]ClusterNode, error) {
	if maxHops <= 0 {
		maxHops = DefaultClusterHops
	}

	type queued struct {
		node ClusterNode
	}
	visited := map[id.EntityID]bool{start: true}
	queue := []queued{{node: ClusterNode{ID: start, Distance: 0}}}
	var out []ClusterNode

	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		out = append(out, head.node)

		if head.node.Distance >= maxHops {
			continue
		}

		edges, err := g.store.Edges(ctx, head.node.ID)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", start, err)
		}
		for _, edge := range edges {
			neighbor := edge.To
			if neighbor == head.node.ID {
				neighbor = edge.From
			}
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true

			path := make([]Edge, len(head.node.Path), len(head.node.Path)+1)
			copy(path, head.node.Path)
			path = append(path, edge)
			queue = append(queue, queued{node: ClusterNode{
				ID:       neighbor,
				Distance: head.node.Distance + 1,
				Path:     path,
			}})
		}
	}
	return out, nil
}

// Aliases returns every entity whose merged-into chain terminates at the
// given canonical entity, including aliases of now-merged intermediates
// (A→B then B→C means A and B are both aliases of C).
func (g *Graph) Aliases(ctx context.Context, canonical id.EntityID) ([]id.EntityID, error) {
	visited := map[id.EntityID]bool{canonical: true}
	frontier := []id.EntityID{canonical}
	var out []id.EntityID

	// Reverse-BFS over merged-into edges; the same hop bound applies per
	// chain by construction since forward chains are bounded.
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		sources, err := g.store.MergedFrom(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("aliases of %s: %w", canonical, err)
		}
		for _, src := range sources {
			if visited[src] {
				continue
			}
			visited[src] = true
			out = append(out, src)
			frontier = append(frontier, src)
		}
	}
	return out, nil
}

// RecordMerge appends the merged-into edge for an absorption and invalidates
// cached resolutions for the absorbed entity and its aliases. The entity
// store's MarkMerged runs in the same unit of work at the call site.
func (g *Graph) RecordMerge(ctx context.Context, kind id.EntityKind, from, into id.EntityID, note string) error {
	if from == into {
		return fmt.Errorf("entity cannot merge into itself")
	}
	err := g.store.Append(ctx, Edge{
		Kind:       kind,
		From:       from,
		To:         into,
		Type:       id.EdgeMergedInto,
		Confidence: 1.0,
		Note:       note,
	})
	if err != nil {
		return err
	}

	if g.cache != nil {
		g.cache.Invalidate(ctx, from)
		// Aliases of the absorbed entity now resolve one hop further.
		aliases, err := g.Aliases(ctx, from)
		if err == nil {
			for _, alias := range aliases {
				g.cache.Invalidate(ctx, alias)
			}
		}
	}
	return nil
}
