package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "trapper/pkg/domain"
)

func newTestGraph(t *testing.T) (*Graph, *InMemoryEdgeStore) {
	t.Helper()
	store := NewInMemoryEdgeStore()
	g, err := New(store)
	require.NoError(t, err)
	return g, store
}

func mergeEdge(from, to id.EntityID) Edge {
	return Edge{
		Kind:       id.KindPerson,
		From:       from,
		To:         to,
		Type:       id.EdgeMergedInto,
		Confidence: 1.0,
	}
}

func TestCanonicalize_FixedPoint(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := context.Background()

	e := id.NewEntityID()
	got, err := g.Canonicalize(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, e, got, "entity with no merge edge is its own canonical")
}

func TestCanonicalize_ChainFromAnyPoint(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := context.Background()

	a := id.NewEntityID()
	b := id.NewEntityID()
	c := id.NewEntityID()
	require.NoError(t, store.Append(ctx, mergeEdge(a, b)))
	require.NoError(t, store.Append(ctx, mergeEdge(b, c)))

	for _, start := range []id.EntityID{a, b, c} {
		got, err := g.Canonicalize(ctx, start)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	// Resolving the result again is a no-op.
	again, err := g.Canonicalize(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestCanonicalize_CycleGuard(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := context.Background()

	a := id.NewEntityID()
	b := id.NewEntityID()
	require.NoError(t, store.Append(ctx, mergeEdge(a, b)))
	require.NoError(t, store.Append(ctx, mergeEdge(b, a)))

	_, err := g.Canonicalize(ctx, a)
	assert.ErrorIs(t, err, ErrCycleGuard)
}

func TestCanonicalize_HopBound(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := context.Background()

	ids := make([]id.EntityID, MaxMergeHops+2)
	for i := range ids {
		ids[i] = id.NewEntityID()
	}
	for i := 0; i < len(ids)-1; i++ {
		require.NoError(t, store.Append(ctx, mergeEdge(ids[i], ids[i+1])))
	}

	_, err := g.Canonicalize(ctx, ids[0])
	assert.ErrorIs(t, err, ErrCycleGuard, "chain deeper than the bound must not resolve")

	// A chain exactly at the bound still resolves.
	got, err := g.Canonicalize(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, ids[len(ids)-1], got)
}

func TestAliases_MultiHopClosure(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := context.Background()

	a := id.NewEntityID()
	b := id.NewEntityID()
	c := id.NewEntityID()
	d := id.NewEntityID()
	require.NoError(t, store.Append(ctx, mergeEdge(a, b)))
	require.NoError(t, store.Append(ctx, mergeEdge(b, c)))
	require.NoError(t, store.Append(ctx, mergeEdge(d, c)))

	aliases, err := g.Aliases(ctx, c)
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.EntityID{a, b, d}, aliases)

	none, err := g.Aliases(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCluster_BoundedTraversal(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := context.Background()

	a := id.NewEntityID()
	b := id.NewEntityID()
	c := id.NewEntityID()
	d := id.NewEntityID()
	require.NoError(t, store.Append(ctx, Edge{
		Kind: id.KindPerson, From: a, To: b, Type: id.EdgeHouseholdMember, Confidence: 0.85,
	}))
	require.NoError(t, store.Append(ctx, Edge{
		Kind: id.KindPerson, From: c, To: b, Type: id.EdgeRelatedTo, Confidence: 0.6,
	}))
	require.NoError(t, store.Append(ctx, Edge{
		Kind: id.KindPerson, From: c, To: d, Type: id.EdgeSameAs, Confidence: 0.9,
	}))

	nodes, err := g.Cluster(ctx, a, 3)
	require.NoError(t, err)

	byID := make(map[id.EntityID]ClusterNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	require.Len(t, byID, 4)
	assert.Equal(t, 0, byID[a].Distance)
	assert.Equal(t, 1, byID[b].Distance)
	assert.Equal(t, 2, byID[c].Distance)
	assert.Equal(t, 3, byID[d].Distance)
	assert.Len(t, byID[d].Path, 3, "path retraces every hop from the origin")

	// Edges beyond the hop bound are not followed.
	near, err := g.Cluster(ctx, a, 1)
	require.NoError(t, err)
	assert.Len(t, near, 2)
}

func TestCluster_DeduplicatesDiamond(t *testing.T) {
	g, store := newTestGraph(t)
	ctx := context.Background()

	a := id.NewEntityID()
	b := id.NewEntityID()
	c := id.NewEntityID()
	d := id.NewEntityID()
	for _, e := range []Edge{
		{Kind: id.KindPerson, From: a, To: b, Type: id.EdgeHouseholdMember, Confidence: 0.85},
		{Kind: id.KindPerson, From: a, To: c, Type: id.EdgeHouseholdMember, Confidence: 0.85},
		{Kind: id.KindPerson, From: b, To: d, Type: id.EdgeRelatedTo, Confidence: 0.6},
		{Kind: id.KindPerson, From: c, To: d, Type: id.EdgeRelatedTo, Confidence: 0.6},
	} {
		require.NoError(t, store.Append(ctx, e))
	}

	nodes, err := g.Cluster(ctx, a, 5)
	require.NoError(t, err)
	assert.Len(t, nodes, 4, "each entity appears once even with multiple paths")
}

type mapCache struct {
	entries map[id.EntityID]id.EntityID
	gets    int
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[id.EntityID]id.EntityID)}
}

func (c *mapCache) Get(_ context.Context, e id.EntityID) (id.EntityID, bool) {
	c.gets++
	canonical, ok := c.entries[e]
	return canonical, ok
}

func (c *mapCache) Put(_ context.Context, e, canonical id.EntityID) {
	c.puts++
	c.entries[e] = canonical
}

func (c *mapCache) Invalidate(_ context.Context, e id.EntityID) {
	delete(c.entries, e)
}

func TestCanonicalize_CachesResolution(t *testing.T) {
	store := NewInMemoryEdgeStore()
	cache := newMapCache()
	g, err := New(store, WithCache(cache))
	require.NoError(t, err)
	ctx := context.Background()

	a := id.NewEntityID()
	b := id.NewEntityID()
	require.NoError(t, store.Append(ctx, mergeEdge(a, b)))

	got, err := g.Canonicalize(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Equal(t, 1, cache.puts)

	got, err = g.Canonicalize(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, b, got)
	assert.Equal(t, 1, cache.puts, "second resolution served from cache")
}

func TestRecordMerge_InvalidatesAliases(t *testing.T) {
	store := NewInMemoryEdgeStore()
	cache := newMapCache()
	g, err := New(store, WithCache(cache))
	require.NoError(t, err)
	ctx := context.Background()

	a := id.NewEntityID()
	b := id.NewEntityID()
	c := id.NewEntityID()
	require.NoError(t, store.Append(ctx, mergeEdge(a, b)))

	got, err := g.Canonicalize(ctx, a)
	require.NoError(t, err)
	require.Equal(t, b, got)

	// Merging b onward stales the cached a -> b resolution.
	require.NoError(t, g.RecordMerge(ctx, id.KindPerson, b, c, "operator confirmed duplicate"))

	got, err = g.Canonicalize(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestRecordMerge_RejectsSelfMerge(t *testing.T) {
	g, _ := newTestGraph(t)
	e := id.NewEntityID()
	err := g.RecordMerge(context.Background(), id.KindPerson, e, e, "")
	assert.Error(t, err)
}
