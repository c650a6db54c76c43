package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapper/internal/entity"
	"trapper/internal/graph"
	id "trapper/pkg/domain"
)

type detectorFixture struct {
	entities *entity.InMemoryStore
	edges    *graph.InMemoryEdgeStore
	store    *InMemoryStore
	detector *Detector
}

func newDetectorFixture(t *testing.T, opts ...DetectorOption) *detectorFixture {
	t.Helper()
	f := &detectorFixture{
		entities: entity.NewInMemoryStore(),
		edges:    graph.NewInMemoryEdgeStore(),
		store:    NewInMemoryStore(),
	}
	d, err := NewDetector(f.entities, f.edges, f.store, opts...)
	require.NoError(t, err)
	f.detector = d
	return f
}

type personSpec struct {
	name    string
	email   string
	phone   string
	address string
}

func (f *detectorFixture) person(t *testing.T, spec personSpec) id.EntityID {
	t.Helper()
	e := entity.Entity{
		ID:          id.NewEntityID(),
		Kind:        id.KindPerson,
		DisplayName: spec.name,
		AddressNorm: spec.address,
		Source:      "clinichq",
		Canonical:   true,
	}
	var idents []entity.Identifier
	if spec.email != "" {
		idents = append(idents, entity.Identifier{
			EntityID: e.ID, Type: id.IdentifierEmail, Normalized: spec.email, Source: "clinichq", Confidence: 1.0,
		})
	}
	if spec.phone != "" {
		idents = append(idents, entity.Identifier{
			EntityID: e.ID, Type: id.IdentifierPhone, Normalized: spec.phone, Source: "clinichq", Confidence: 1.0,
		})
	}
	require.NoError(t, f.entities.Create(context.Background(), &e, idents))
	return e.ID
}

func (f *detectorFixture) pending(t *testing.T) []*Candidate {
	t.Helper()
	out, err := f.store.ListByStatus(context.Background(), StatusPending, 100)
	require.NoError(t, err)
	return out
}

func TestRun_SharedEmailIsStrongIdentifierPair(t *testing.T) {
	f := newDetectorFixture(t)
	a := f.person(t, personSpec{name: "Jane Smith", email: "jane@x.org"})
	b := f.person(t, personSpec{name: "Jane Smith", email: "jane@x.org", phone: "5035551234"})

	stats, err := f.detector.Run(context.Background(), id.KindPerson)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)

	pairs := f.pending(t)
	require.Len(t, pairs, 1)
	c := pairs[0]
	assert.Equal(t, id.TierStrongIdentifier, c.Tier)
	assert.GreaterOrEqual(t, c.Confidence, 0.95)
	assert.Contains(t, c.Reason, "jane@x.org")

	want := []id.EntityID{a, b}
	if b.Less(a) {
		want = []id.EntityID{b, a}
	}
	assert.Equal(t, want[0], c.EntityA)
	assert.Equal(t, want[1], c.EntityB)
}

func TestRun_SharedPhoneSimilarNameIsLikelyDuplicate(t *testing.T) {
	f := newDetectorFixture(t)
	f.person(t, personSpec{name: "Jane Smith", phone: "5035551234"})
	f.person(t, personSpec{name: "Jane Smyth", phone: "5035551234"})

	_, err := f.detector.Run(context.Background(), id.KindPerson)
	require.NoError(t, err)

	pairs := f.pending(t)
	require.Len(t, pairs, 1)
	assert.Equal(t, id.TierWeakIdentifierNameMatch, pairs[0].Tier)
	assert.GreaterOrEqual(t, pairs[0].Confidence, 0.80)
	assert.Contains(t, pairs[0].Reason, "5035551234")
}

func TestRun_SharedPhoneDifferentNameIsHouseholdCandidate(t *testing.T) {
	f := newDetectorFixture(t)
	f.person(t, personSpec{name: "John Smith", phone: "5035551234"})
	f.person(t, personSpec{name: "Mary Smith", phone: "5035551234"})

	_, err := f.detector.Run(context.Background(), id.KindPerson)
	require.NoError(t, err)

	pairs := f.pending(t)
	require.Len(t, pairs, 1)
	assert.Equal(t, id.TierWeakIdentifierNameMismatch, pairs[0].Tier)
	assert.InDelta(t, 0.60, pairs[0].Confidence, 1e-9)
	assert.Contains(t, pairs[0].Reason, "names differ")
}

func TestRun_NameOnlyWithoutSharedContextNeverSurfaced(t *testing.T) {
	f := newDetectorFixture(t)
	f.person(t, personSpec{name: "Alex Johnson", email: "alex1@x.org"})
	f.person(t, personSpec{name: "Alex Johnson", email: "alex2@y.org"})
	f.person(t, personSpec{name: "Alex Johnson"})

	stats, err := f.detector.Run(context.Background(), id.KindPerson)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
	assert.Zero(t, stats.Pairs())
	assert.Empty(t, f.pending(t))
}

func TestRun_SameNameSharedAddressIsContextPair(t *testing.T) {
	f := newDetectorFixture(t)
	f.person(t, personSpec{name: "Alex Johnson", email: "alex1@x.org", address: "12 oak st"})
	f.person(t, personSpec{name: "Alex Johnson", email: "alex2@y.org", address: "12 oak st"})

	_, err := f.detector.Run(context.Background(), id.KindPerson)
	require.NoError(t, err)

	pairs := f.pending(t)
	require.Len(t, pairs, 1)
	assert.Equal(t, id.TierNameWithContext, pairs[0].Tier)
	assert.Contains(t, pairs[0].Reason, "same address")
}

func TestRun_SameNameSharedNeighborIsContextPair(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()
	a := f.person(t, personSpec{name: "Alex Johnson", email: "alex1@x.org"})
	b := f.person(t, personSpec{name: "Alex Johnson", email: "alex2@y.org"})
	shared := f.person(t, personSpec{name: "Casey Lee", email: "casey@z.org"})

	for _, from := range []id.EntityID{a, b} {
		require.NoError(t, f.edges.Append(ctx, graph.Edge{
			Kind: id.KindPerson, From: from, To: shared, Type: id.EdgeRelatedTo, Confidence: 1.0,
		}))
	}

	_, err := f.detector.Run(ctx, id.KindPerson)
	require.NoError(t, err)

	var contextPairs []*Candidate
	for _, c := range f.pending(t) {
		if c.Tier == id.TierNameWithContext {
			contextPairs = append(contextPairs, c)
		}
	}
	require.Len(t, contextPairs, 1)
	assert.Contains(t, contextPairs[0].Reason, "shared relationship")
}

func TestRun_WidelySharedIdentifierSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBucket = 2
	f := newDetectorFixture(t, WithConfig(cfg))
	for _, name := range []string{"Ann One", "Bob Two", "Cal Three"} {
		f.person(t, personSpec{name: name, phone: "5035550000"})
	}

	stats, err := f.detector.Run(context.Background(), id.KindPerson)
	require.NoError(t, err)
	assert.Zero(t, stats.Pairs())
	assert.Empty(t, f.pending(t))
}

func TestRun_SharedEmailAndPhoneCollapseToOneRow(t *testing.T) {
	f := newDetectorFixture(t)
	f.person(t, personSpec{name: "Jane Smith", email: "jane@x.org", phone: "5035551234"})
	f.person(t, personSpec{name: "Jane Smith", email: "jane@x.org", phone: "5035551234"})

	_, err := f.detector.Run(context.Background(), id.KindPerson)
	require.NoError(t, err)

	pairs := f.pending(t)
	require.Len(t, pairs, 1)
	assert.Equal(t, id.TierStrongIdentifier, pairs[0].Tier)
	assert.InDelta(t, 1.0, pairs[0].Confidence, 1e-9)
}

func TestRun_RedetectionLeavesDispositionsAlone(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()
	f.person(t, personSpec{name: "Jane Smith", email: "jane@x.org"})
	f.person(t, personSpec{name: "Jane Smyth", email: "jane@x.org"})

	_, err := f.detector.Run(ctx, id.KindPerson)
	require.NoError(t, err)
	pairs := f.pending(t)
	require.Len(t, pairs, 1)
	require.NoError(t, f.store.UpdateStatus(ctx, pairs[0].ID, StatusDismissed, "reviewer"))

	_, err = f.detector.Run(ctx, id.KindPerson)
	require.NoError(t, err)
	assert.Empty(t, f.pending(t))

	dismissed, err := f.store.ListByStatus(ctx, StatusDismissed, 10)
	require.NoError(t, err)
	require.Len(t, dismissed, 1)
	assert.Equal(t, "reviewer", dismissed[0].ResolvedBy)
}

func TestRun_StopsOnCancellation(t *testing.T) {
	f := newDetectorFixture(t)
	f.person(t, personSpec{name: "Jane Smith", email: "jane@x.org"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.detector.Run(ctx, id.KindPerson)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_BoundedByMaxEntities(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageSize = 2
	cfg.MaxEntities = 3
	f := newDetectorFixture(t, WithConfig(cfg))
	for i := 0; i < 5; i++ {
		f.person(t, personSpec{name: "Person Name"})
	}

	stats, err := f.detector.Run(context.Background(), id.KindPerson)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
}
