package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapper/internal/entity"
	"trapper/internal/graph"
	id "trapper/pkg/domain"
)

type fixture struct {
	entities *entity.InMemoryStore
	graph    *graph.Graph
	router   chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{entities: entity.NewInMemoryStore()}
	g, err := graph.New(graph.NewInMemoryEdgeStore())
	require.NoError(t, err)
	f.graph = g
	f.router = chi.NewRouter()
	New(f.entities, g, slog.Default()).Register(f.router)
	return f
}

func (f *fixture) person(t *testing.T, name, email string) id.EntityID {
	t.Helper()
	e := entity.Entity{
		ID:          id.NewEntityID(),
		Kind:        id.KindPerson,
		DisplayName: name,
		Source:      "clinichq",
		Canonical:   true,
	}
	var idents []entity.Identifier
	if email != "" {
		idents = append(idents, entity.Identifier{
			EntityID: e.ID, Type: id.IdentifierEmail, Normalized: email, Source: "clinichq", Confidence: 1.0,
		})
	}
	require.NoError(t, f.entities.Create(context.Background(), &e, idents))
	return e.ID
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleGet_ReturnsRecordWithIdentifiers(t *testing.T) {
	f := newFixture(t)
	eid := f.person(t, "Jane Smith", "jane@x.org")

	rec := f.get(t, "/people/"+eid.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PersonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, eid.String(), resp.ID)
	assert.Equal(t, "Jane Smith", resp.DisplayName)
	assert.False(t, resp.Redirected)
	require.Len(t, resp.Identifiers, 1)
	assert.Equal(t, "jane@x.org", resp.Identifiers[0].Value)
}

func TestHandleGet_MergedIDRedirectsToCanonical(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	winner := f.person(t, "Jane Smith", "jane@x.org")
	loser := f.person(t, "Jane Smyth", "")

	require.NoError(t, f.entities.MarkMerged(ctx, loser, winner))
	require.NoError(t, f.graph.RecordMerge(ctx, id.KindPerson, loser, winner, ""))

	rec := f.get(t, "/people/"+loser.String())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PersonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, winner.String(), resp.ID)
	assert.True(t, resp.Redirected)
}

func TestHandleGet_UnknownEntity(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/people/"+id.NewEntityID().String())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGet_MalformedID(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/people/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCluster_ReturnsNeighborsWithDistances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.person(t, "Jane Smith", "jane@x.org")
	member := f.person(t, "John Smith", "")
	distant := f.person(t, "Casey Lee", "")

	require.NoError(t, f.graph.Append(ctx, graph.Edge{
		Kind: id.KindPerson, From: member, To: root, Type: id.EdgeHouseholdMember, Confidence: 0.8,
	}))
	require.NoError(t, f.graph.Append(ctx, graph.Edge{
		Kind: id.KindPerson, From: distant, To: member, Type: id.EdgeRelatedTo, Confidence: 0.5,
	}))

	rec := f.get(t, "/people/"+root.String()+"/cluster?hops=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClusterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, root.String(), resp.Root)

	distances := map[string]int{}
	for _, n := range resp.Nodes {
		distances[n.ID] = n.Distance
	}
	assert.Equal(t, 0, distances[root.String()])
	assert.Equal(t, 1, distances[member.String()])
	assert.Equal(t, 2, distances[distant.String()])

	rec = f.get(t, "/people/"+root.String()+"/cluster?hops=1")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ClusterResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Nodes, 2)
}

func TestHandleCluster_RejectsBadHops(t *testing.T) {
	f := newFixture(t)
	eid := f.person(t, "Jane Smith", "")
	rec := f.get(t, "/people/"+eid.String()+"/cluster?hops=99")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
