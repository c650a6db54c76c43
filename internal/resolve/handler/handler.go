// Package handler wires resolution endpoints to the resolver service. Review
// surfaces consume the decision log read-only and write back only explicit
// dispositions.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trapper/internal/resolve"
	id "trapper/pkg/domain"
	dErrors "trapper/pkg/domain-errors"
	"trapper/pkg/platform/httputil"
	"trapper/pkg/requestcontext"
)

// Service defines the interface for resolution operations.
type Service interface {
	Resolve(ctx context.Context, in resolve.Input) (*resolve.Outcome, error)
}

// Handler wires resolution endpoints to the resolver and the decision log.
type Handler struct {
	service   Service
	decisions resolve.DecisionStore
	logger    *slog.Logger
}

// New constructs a resolution handler with its dependencies.
func New(service Service, decisions resolve.DecisionStore, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		decisions: decisions,
		logger:    logger,
	}
}

// Register mounts resolution endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/resolve", h.HandleResolve)
	r.Get("/decisions", h.HandleListDecisions)
	r.Get("/decisions/{decisionID}", h.HandleGetDecision)
	r.Post("/decisions/{decisionID}/disposition", h.HandleDisposition)
}

// HandleResolve handles POST /resolve requests.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	in, ok := httputil.Decode[resolve.Input](w, r)
	if !ok {
		return
	}
	if in.SourceSystem == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "sourceSystem is required"))
		return
	}

	outcome, err := h.service.Resolve(ctx, in)
	if err != nil {
		h.logger.ErrorContext(ctx, "resolution failed",
			"request_id", requestID,
			"source_system", in.SourceSystem,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "record resolved",
		"request_id", requestID,
		"source_system", in.SourceSystem,
		"decision_type", outcome.Type.String(),
		"decision_id", outcome.DecisionID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, outcome)
}

// HandleListDecisions handles GET /decisions?status=pending&limit=50.
func (h *Handler) HandleListDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := resolve.ReviewPending
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := resolve.ParseReviewStatus(raw)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid review status"))
			return
		}
		status = parsed
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

	decisions, err := h.decisions.ListByStatus(ctx, status, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list decisions failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecisions(decisions))
}

// HandleGetDecision handles GET /decisions/{decisionID}.
func (h *Handler) HandleGetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	decisionID, err := id.ParseDecisionID(chi.URLParam(r, "decisionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.decisions.Get(ctx, decisionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

// HandleDisposition handles POST /decisions/{decisionID}/disposition.
func (h *Handler) HandleDisposition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	decisionID, err := id.ParseDecisionID(chi.URLParam(r, "decisionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[DispositionRequest](w, r)
	if !ok {
		return
	}
	status, ok := resolve.ParseReviewStatus(req.Status)
	if !ok || status == resolve.ReviewPending {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "status must be accepted or rejected"))
		return
	}
	if req.Actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "actor is required"))
		return
	}

	if err := h.decisions.UpdateReview(ctx, decisionID, status, req.Actor); err != nil {
		h.logger.ErrorContext(ctx, "decision disposition failed",
			"request_id", requestID,
			"decision_id", decisionID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "decision disposition recorded",
		"request_id", requestID,
		"decision_id", decisionID.String(),
		"status", string(status),
		"actor", req.Actor,
	)
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}
