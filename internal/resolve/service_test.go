package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapper/internal/entity"
	"trapper/internal/exclusion"
	"trapper/internal/graph"
	"trapper/internal/source"
	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
)

type fixture struct {
	entities  entity.Store
	edges     *graph.InMemoryEdgeStore
	graph     *graph.Graph
	rules     *exclusion.InMemoryRuleStore
	blacklist *exclusion.InMemoryBlacklistStore
	decisions *InMemoryDecisionStore
	sources   *source.InMemoryRegistry
	resolver  *Resolver
}

func newFixture(t *testing.T, store entity.Store) *fixture {
	t.Helper()
	if store == nil {
		store = entity.NewInMemoryStore()
	}
	f := &fixture{
		entities:  store,
		edges:     graph.NewInMemoryEdgeStore(),
		rules:     exclusion.NewInMemoryRuleStore(),
		blacklist: exclusion.NewInMemoryBlacklistStore(),
		decisions: NewInMemoryDecisionStore(),
		sources: source.NewInMemory(
			source.Source{System: "clinichq", Reliability: 1.0},
			source.Source{System: "roster", Reliability: 1.0, Trusted: true},
			source.Source{System: "webform", Reliability: 0.1},
		),
	}
	g, err := graph.New(f.edges)
	require.NoError(t, err)
	f.graph = g

	filter, err := exclusion.NewFilter(f.rules)
	require.NoError(t, err)

	r, err := NewResolver(f.entities, g, filter, f.decisions,
		WithSources(f.sources),
		WithBlacklist(f.blacklist),
	)
	require.NoError(t, err)
	f.resolver = r
	return f
}

func (f *fixture) resolve(t *testing.T, in Input) *Outcome {
	t.Helper()
	out, err := f.resolver.Resolve(context.Background(), in)
	require.NoError(t, err)
	return out
}

func (f *fixture) decisionCount(t *testing.T) int {
	t.Helper()
	plain, err := f.decisions.ListByStatus(context.Background(), ReviewStatus(""), 0)
	require.NoError(t, err)
	pending, err := f.decisions.ListByStatus(context.Background(), ReviewPending, 0)
	require.NoError(t, err)
	return len(plain) + len(pending)
}

func TestResolve_EmailThenEmail_AutoMatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.resolve(t, Input{Email: "jane@x.org", FirstName: "Jane", LastName: "Smith", SourceSystem: "clinichq"})
	assert.Equal(t, id.DecisionNewEntity, first.Type)
	require.NotNil(t, first.EntityID)

	second := f.resolve(t, Input{Email: "jane@x.org", Phone: "555-123-4567", SourceSystem: "webform"})
	assert.Equal(t, id.DecisionAutoMatch, second.Type)
	require.NotNil(t, second.EntityID)
	assert.Equal(t, *first.EntityID, *second.EntityID)
	assert.GreaterOrEqual(t, second.Confidence, 0.95)

	// The new phone is now attached to the matched entity.
	idents, err := f.entities.Identifiers(ctx, *first.EntityID)
	require.NoError(t, err)
	var phones []string
	for _, ident := range idents {
		if ident.Type == id.IdentifierPhone {
			phones = append(phones, ident.Normalized)
		}
	}
	assert.Equal(t, []string{"5551234567"}, phones)

	assert.Equal(t, 2, f.decisionCount(t), "exactly one decision row per attempt")
}

func TestResolve_SharedPhoneDifferentName_Household(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.resolve(t, Input{Phone: "5551234567", FirstName: "John", LastName: "Smith", SourceSystem: "clinichq"})
	require.Equal(t, id.DecisionNewEntity, first.Type)

	second := f.resolve(t, Input{Phone: "5551234567", FirstName: "Mary", LastName: "Smith", SourceSystem: "clinichq"})
	assert.Equal(t, id.DecisionHouseholdMember, second.Type)
	require.NotNil(t, second.EntityID)
	assert.NotEqual(t, *first.EntityID, *second.EntityID, "a household member is a new entity, not a merge")
	require.NotNil(t, second.HouseholdID)
	assert.Equal(t, *first.EntityID, *second.HouseholdID)

	edges, err := f.edges.Edges(ctx, *second.EntityID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, id.EdgeHouseholdMember, edges[0].Type)
	assert.Equal(t, *first.EntityID, edges[0].To)
	assert.Contains(t, edges[0].Note, "5551234567")
}

func TestResolve_SharedPhoneManyNames_Discriminates(t *testing.T) {
	f := newFixture(t, nil)

	names := [][2]string{
		{"John", "Smith"}, {"Mary", "Smith"}, {"Carlos", "Vega"}, {"Priya", "Natarajan"}, {"Alice", "Wong"},
	}
	seen := make(map[id.EntityID]bool)
	for _, name := range names {
		out := f.resolve(t, Input{Phone: "5551234567", FirstName: name[0], LastName: name[1], SourceSystem: "clinichq"})
		require.NotNil(t, out.EntityID)
		assert.False(t, seen[*out.EntityID], "the shared phone must not route two different names to one entity")
		seen[*out.EntityID] = true
	}
	assert.Len(t, seen, len(names))
}

func TestResolve_RepeatedHouseholdNameAutoMatches(t *testing.T) {
	f := newFixture(t, nil)

	first := f.resolve(t, Input{Phone: "5551234567", FirstName: "John", LastName: "Smith", SourceSystem: "clinichq"})

	// The same name on the same phone is the same person.
	repeat := f.resolve(t, Input{Phone: "5551234567", FirstName: "John", LastName: "Smith", SourceSystem: "webform"})
	assert.Equal(t, id.DecisionAutoMatch, repeat.Type)
	assert.Equal(t, *first.EntityID, *repeat.EntityID)
}

func TestResolve_Excluded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.rules.Append(ctx, &exclusion.Rule{
		ID:      id.NewRuleID(),
		Stage:   exclusion.StageOrganization,
		Match:   exclusion.MatchSubstring,
		Pattern: "humane society",
		Active:  true,
	}, "ops"))

	out := f.resolve(t, Input{Email: "front.desk@ahs.org", FirstName: "Austin", LastName: "Humane Society", SourceSystem: "clinichq"})
	assert.Equal(t, id.DecisionExcluded, out.Type)
	assert.Nil(t, out.EntityID)
	assert.True(t, out.Type.Rejected())
}

func TestResolve_OrgRepresentativeRedirect(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rep := f.resolve(t, Input{Email: "coord@rescue.org", FirstName: "Dana", LastName: "Lee", SourceSystem: "clinichq"})
	require.NotNil(t, rep.EntityID)

	require.NoError(t, f.rules.Append(ctx, &exclusion.Rule{
		ID:             id.NewRuleID(),
		Stage:          exclusion.StageOrganization,
		Match:          exclusion.MatchSubstring,
		Pattern:        "rescue network",
		Representative: rep.EntityID,
		Active:         true,
	}, "ops"))
	f.resolver.filter.Invalidate()

	out := f.resolve(t, Input{Email: "intake@rrn.org", FirstName: "River", LastName: "Rescue Network", SourceSystem: "clinichq"})
	assert.Equal(t, id.DecisionOrgRepresentative, out.Type)
	require.NotNil(t, out.EntityID)
	assert.Equal(t, *rep.EntityID, *out.EntityID)
}

func TestResolve_NoIdentifiers(t *testing.T) {
	f := newFixture(t, nil)

	out := f.resolve(t, Input{FirstName: "Jane", LastName: "Smith", SourceSystem: "webform"})
	assert.Equal(t, id.DecisionNoIdentifiers, out.Type)
	assert.Nil(t, out.EntityID)
}

func TestResolve_BlacklistedIdentifier(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.blacklist.Add(ctx, id.IdentifierPhone, "5550000000", "clinic front desk line"))

	out := f.resolve(t, Input{Phone: "5550000000", FirstName: "Walk", LastName: "In", SourceSystem: "webform"})
	assert.Equal(t, id.DecisionBlacklistedIdentifier, out.Type)
	assert.Nil(t, out.EntityID)

	// With another usable identifier the record still resolves; the
	// blacklisted phone is simply not a linking key.
	out = f.resolve(t, Input{Email: "real@x.org", Phone: "5550000000", FirstName: "Jane", LastName: "Doe", SourceSystem: "webform"})
	assert.Equal(t, id.DecisionNewEntity, out.Type)
	require.NotNil(t, out.EntityID)
	idents, err := f.entities.Identifiers(ctx, *out.EntityID)
	require.NoError(t, err)
	for _, ident := range idents {
		assert.NotEqual(t, "5550000000", ident.Normalized)
	}
}

func TestResolve_SkeletonFromTrustedSource(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out := f.resolve(t, Input{FirstName: "Sam", LastName: "Jones", SourceSystem: "roster", SourceRecordID: "7"})
	assert.Equal(t, id.DecisionSkeleton, out.Type)
	require.NotNil(t, out.EntityID)

	e, err := f.entities.Get(ctx, *out.EntityID)
	require.NoError(t, err)
	assert.True(t, e.Skeleton)

	// Re-submitting the same roster row is idempotent.
	again := f.resolve(t, Input{FirstName: "Sam", LastName: "Jones", SourceSystem: "roster", SourceRecordID: "7"})
	assert.Equal(t, id.DecisionSkeleton, again.Type)
	assert.Equal(t, *out.EntityID, *again.EntityID)
}

func TestResolve_SkeletonMergedOnProfileUpdate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	existing := f.resolve(t, Input{Email: "jane@x.org", FirstName: "Jane", LastName: "Smith", SourceSystem: "clinichq"})
	skel := f.resolve(t, Input{FirstName: "Jane", LastName: "Smith", SourceSystem: "roster", SourceRecordID: "42"})
	require.Equal(t, id.DecisionSkeleton, skel.Type)

	updated := f.resolve(t, Input{Email: "jane@x.org", FirstName: "Jane", LastName: "Smith", SourceSystem: "roster", SourceRecordID: "42"})
	assert.Equal(t, id.DecisionAutoMatch, updated.Type)
	require.NotNil(t, updated.EntityID)
	assert.Equal(t, *existing.EntityID, *updated.EntityID)

	merged, err := f.entities.Get(ctx, *skel.EntityID)
	require.NoError(t, err)
	require.NotNil(t, merged.MergedInto)
	assert.Equal(t, *existing.EntityID, *merged.MergedInto)

	skeletons, err := f.entities.ListSkeletons(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, skeletons, "the absorbed skeleton disappears from the skeleton set")

	canonical, err := f.graph.Canonicalize(ctx, *skel.EntityID)
	require.NoError(t, err)
	assert.Equal(t, *existing.EntityID, canonical)
}

func TestResolve_SkeletonPromotedInPlace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	skel := f.resolve(t, Input{FirstName: "Sam", LastName: "Jones", SourceSystem: "roster", SourceRecordID: "7"})
	require.Equal(t, id.DecisionSkeleton, skel.Type)

	updated := f.resolve(t, Input{Email: "sam@x.org", FirstName: "Sam", LastName: "Jones", SourceSystem: "roster", SourceRecordID: "7"})
	assert.Equal(t, id.DecisionAutoMatch, updated.Type)
	require.NotNil(t, updated.EntityID)
	assert.Equal(t, *skel.EntityID, *updated.EntityID)
	assert.Equal(t, 1.0, updated.Confidence)

	e, err := f.entities.Get(ctx, *skel.EntityID)
	require.NoError(t, err)
	assert.False(t, e.Skeleton, "promotion clears the skeleton flag in place")

	records, err := f.entities.FindByIdentifier(ctx, id.KindPerson, id.IdentifierEmail, "sam@x.org")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, *skel.EntityID, records[0].Entity.ID)
}

func TestResolve_LowReliabilitySourceEmailStillAutoMatches(t *testing.T) {
	f := newFixture(t, nil)

	first := f.resolve(t, Input{Email: "jane@x.org", FirstName: "Jane", LastName: "Smith", SourceSystem: "webform"})
	require.Equal(t, id.DecisionNewEntity, first.Type)

	// An identical normalized email is decisive even when the stored
	// identifier came from the noisiest source in the registry.
	second := f.resolve(t, Input{Email: "jane@x.org", FirstName: "Jane", LastName: "Smyth", SourceSystem: "webform"})
	assert.Equal(t, id.DecisionAutoMatch, second.Type)
	require.NotNil(t, second.EntityID)
	assert.Equal(t, *first.EntityID, *second.EntityID)
	assert.GreaterOrEqual(t, second.Confidence, 0.95)
}

func TestResolve_ResubmittedHouseholdRecordRelinks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	john := f.resolve(t, Input{Phone: "5551234567", FirstName: "John", LastName: "Smith", SourceSystem: "clinichq", SourceRecordID: "c-1"})
	require.Equal(t, id.DecisionNewEntity, john.Type)
	mary := f.resolve(t, Input{Phone: "5551234567", FirstName: "Mary", LastName: "Smith", SourceSystem: "clinichq", SourceRecordID: "c-2"})
	require.Equal(t, id.DecisionHouseholdMember, mary.Type)

	// The same upstream row arriving again routes back to the entity it
	// created instead of tripping over its own legacy key.
	again := f.resolve(t, Input{Phone: "5551234567", FirstName: "Mary", LastName: "Smith", SourceSystem: "clinichq", SourceRecordID: "c-2"})
	assert.Equal(t, id.DecisionAutoMatch, again.Type)
	require.NotNil(t, again.EntityID)
	assert.Equal(t, *mary.EntityID, *again.EntityID)

	// Re-submission with enrichment attaches the new identifier to the owner.
	enriched := f.resolve(t, Input{Phone: "5551234567", Email: "mary@x.org", FirstName: "Mary", LastName: "Smith", SourceSystem: "clinichq", SourceRecordID: "c-2"})
	assert.Equal(t, id.DecisionAutoMatch, enriched.Type)
	require.NotNil(t, enriched.EntityID)
	assert.Equal(t, *mary.EntityID, *enriched.EntityID)

	records, err := f.entities.FindByIdentifier(ctx, id.KindPerson, id.IdentifierEmail, "mary@x.org")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, *mary.EntityID, records[0].Entity.ID)

	assert.Equal(t, 4, f.decisionCount(t), "every attempt still writes exactly one decision row")
}

func TestResolve_CrossIdentifierConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	amy := f.resolve(t, Input{Email: "amy@x.org", FirstName: "Amy", LastName: "Pond", SourceSystem: "clinichq"})
	rory := f.resolve(t, Input{Phone: "5551112222", FirstName: "Rory", LastName: "Williams", SourceSystem: "clinichq"})

	out := f.resolve(t, Input{Email: "amy@x.org", Phone: "5551112222", FirstName: "Amy", LastName: "Pond", SourceSystem: "webform"})
	assert.Equal(t, id.DecisionNeedsReview, out.Type, "two identifier types matching two entities is never silently merged")
	require.NotNil(t, out.EntityID)
	assert.Equal(t, *amy.EntityID, *out.EntityID, "the stronger identifier class wins the link")

	d, err := f.decisions.Get(ctx, out.DecisionID)
	require.NoError(t, err)
	require.NotNil(t, d.MatchedEntityID)
	assert.Equal(t, *rory.EntityID, *d.MatchedEntityID)
	assert.Equal(t, ReviewPending, d.ReviewStatus)

	edges, err := f.edges.Edges(ctx, *amy.EntityID)
	require.NoError(t, err)
	var related int
	for _, e := range edges {
		if e.Type == id.EdgeRelatedTo && e.To == *rory.EntityID {
			related++
		}
	}
	assert.Equal(t, 1, related)

	// A disposition is terminal; a second write is rejected.
	require.NoError(t, f.decisions.UpdateReview(ctx, out.DecisionID, ReviewAccepted, "reviewer"))
	assert.ErrorIs(t, f.decisions.UpdateReview(ctx, out.DecisionID, ReviewRejected, "reviewer"), sentinel.ErrInvalidState)
}

// racingStore makes the first Create lose a uniqueness race to a concurrent
// writer inserting the same email.
type racingStore struct {
	entity.Store
	raced  bool
	winner func()
}

func (s *racingStore) Create(ctx context.Context, e *entity.Entity, identifiers []entity.Identifier) error {
	if !s.raced {
		s.raced = true
		s.winner()
		return sentinel.ErrConflict
	}
	return s.Store.Create(ctx, e, identifiers)
}

func TestResolve_ConstraintRaceRetriesAsMatch(t *testing.T) {
	inner := entity.NewInMemoryStore()
	racing := &racingStore{Store: inner}
	f := newFixture(t, racing)
	ctx := context.Background()

	var winnerID id.EntityID
	racing.winner = func() {
		winnerID = id.NewEntityID()
		e := entity.Entity{
			ID: winnerID, Kind: id.KindPerson, DisplayName: "Jane Smith",
			Source: "clinichq", Canonical: true,
		}
		err := inner.Create(ctx, &e, []entity.Identifier{{
			EntityID: winnerID, Type: id.IdentifierEmail, Normalized: "jane@x.org", Source: "clinichq", Confidence: 1.0,
		}})
		require.NoError(t, err)
	}

	out := f.resolve(t, Input{Email: "jane@x.org", FirstName: "Jane", LastName: "Smith", SourceSystem: "clinichq"})
	assert.Equal(t, id.DecisionAutoMatch, out.Type, "the losing writer retries as a match, not an error")
	require.NotNil(t, out.EntityID)
	assert.Equal(t, winnerID, *out.EntityID)
	assert.Equal(t, 1, f.decisionCount(t), "the retried attempt still writes exactly one decision row")
}

func TestResolve_NormalizationRejectsUnusableIdentifiers(t *testing.T) {
	f := newFixture(t, nil)

	// A malformed email and a short phone normalize to absent.
	out := f.resolve(t, Input{Email: "not-an-email", Phone: "12345", FirstName: "Jane", LastName: "Smith", SourceSystem: "webform"})
	assert.Equal(t, id.DecisionNoIdentifiers, out.Type)
}
