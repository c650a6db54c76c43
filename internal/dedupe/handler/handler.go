// Package handler wires the duplicate review endpoints to the candidate
// store and the merger. Dispositions are the only writes; a merge touches
// the entity store solely through the merger.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"trapper/internal/dedupe"
	id "trapper/pkg/domain"
	dErrors "trapper/pkg/domain-errors"
	"trapper/pkg/platform/httputil"
	"trapper/pkg/requestcontext"
)

// Handler wires duplicate review endpoints to the store and merger.
type Handler struct {
	store  dedupe.Store
	merger *dedupe.Merger
	logger *slog.Logger
}

// New constructs a duplicate review handler.
func New(store dedupe.Store, merger *dedupe.Merger, logger *slog.Logger) *Handler {
	return &Handler{store: store, merger: merger, logger: logger}
}

// Register mounts duplicate review endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/duplicates", h.HandleList)
	r.Get("/duplicates/{candidateID}", h.HandleGet)
	r.Post("/duplicates/{candidateID}/disposition", h.HandleDisposition)
}

// HandleList handles GET /duplicates?status=pending&tier=2&limit=50.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := dedupe.StatusPending
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := dedupe.ParseStatus(raw)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid candidate status"))
			return
		}
		status = parsed
	}
	var tier id.DuplicateTier
	if raw := r.URL.Query().Get("tier"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "duplicate tier must be 1-4"))
			return
		}
		tier, err = id.ParseDuplicateTier(n)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be in [1,500]"))
			return
		}
		limit = parsed
	}

	candidates, err := h.store.ListByStatus(ctx, status, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list duplicate candidates failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	if tier != 0 {
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.Tier == tier {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}
	httputil.WriteJSON(w, http.StatusOK, FromCandidates(candidates))
}

// HandleGet handles GET /duplicates/{candidateID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.store.Get(ctx, candidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCandidate(c))
}

// HandleDisposition handles POST /duplicates/{candidateID}/disposition.
// Action "merge" applies the operator-confirmed merge; "dismiss" closes the
// pair without touching the entities.
func (h *Handler) HandleDisposition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[DispositionRequest](w, r)
	if !ok {
		return
	}
	if req.Actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "actor is required"))
		return
	}

	switch req.Action {
	case "merge":
		result, err := h.merger.Apply(ctx, candidateID, req.Actor)
		if err != nil {
			h.logger.ErrorContext(ctx, "duplicate merge failed",
				"request_id", requestID,
				"candidate_id", candidateID.String(),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.InfoContext(ctx, "duplicate merge applied",
			"request_id", requestID,
			"candidate_id", candidateID.String(),
			"survivor", result.Survivor.String(),
			"absorbed", result.Absorbed.String(),
			"actor", req.Actor,
		)
		httputil.WriteJSON(w, http.StatusOK, MergeResponse{
			Survivor: result.Survivor.String(),
			Absorbed: result.Absorbed.String(),
		})
	case "dismiss":
		if err := h.merger.Dismiss(ctx, candidateID, req.Actor); err != nil {
			h.logger.ErrorContext(ctx, "duplicate dismissal failed",
				"request_id", requestID,
				"candidate_id", candidateID.String(),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusNoContent, nil)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "action must be merge or dismiss"))
	}
}
