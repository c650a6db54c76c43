// Package handler exposes the read-only person views: the resolved record
// with its identifiers, and the surrounding identity cluster.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trapper/internal/entity"
	"trapper/internal/graph"
	id "trapper/pkg/domain"
	dErrors "trapper/pkg/domain-errors"
	"trapper/pkg/platform/httputil"
)

const maxClusterHops = 6

// Handler wires person read endpoints to the entity store and the graph.
type Handler struct {
	entities entity.Store
	graph    *graph.Graph
	logger   *slog.Logger
}

// New constructs a person read handler.
func New(entities entity.Store, g *graph.Graph, logger *slog.Logger) *Handler {
	return &Handler{entities: entities, graph: g, logger: logger}
}

// Register mounts person read endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/people/{entityID}", h.HandleGet)
	r.Get("/people/{entityID}/cluster", h.HandleCluster)
}

// HandleGet handles GET /people/{entityID}. A merged-away ID resolves
// through the graph and returns the canonical record, noting the redirect.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := id.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	canonical, err := h.graph.Canonicalize(ctx, entityID)
	if err != nil {
		if errors.Is(err, graph.ErrCycleGuard) {
			h.logger.ErrorContext(ctx, "merge chain unresolvable",
				"entity_id", entityID.String(), "error", err)
			httputil.WriteError(w, dErrors.New(dErrors.CodeAmbiguous, "entity has no canonical resolution"))
			return
		}
		httputil.WriteError(w, err)
		return
	}

	e, err := h.entities.Get(ctx, canonical)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	idents, err := h.entities.Identifiers(ctx, canonical)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(e, idents, entityID != canonical))
}

// HandleCluster handles GET /people/{entityID}/cluster?hops=3.
func (h *Handler) HandleCluster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityID, err := id.ParseEntityID(chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hops := 0
	if raw := r.URL.Query().Get("hops"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxClusterHops {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "hops must be in [1,%d]", maxClusterHops))
			return
		}
		hops = parsed
	}

	canonical, err := h.graph.Canonicalize(ctx, entityID)
	if err != nil {
		if errors.Is(err, graph.ErrCycleGuard) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeAmbiguous, "entity has no canonical resolution"))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.entities.Get(ctx, canonical); err != nil {
		httputil.WriteError(w, err)
		return
	}

	nodes, err := h.graph.Cluster(ctx, canonical, hops)
	if err != nil {
		h.logger.ErrorContext(ctx, "cluster traversal failed",
			"entity_id", canonical.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCluster(canonical, nodes))
}
