package dedupe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trapper/internal/dedupe/metrics"
	"trapper/internal/entity"
	"trapper/internal/graph"
	id "trapper/pkg/domain"
	dErrors "trapper/pkg/domain-errors"
	"trapper/pkg/platform/sentinel"
)

// Merger applies operator-confirmed merges of duplicate candidate pairs.
// Detection never merges; this is the only write path from a candidate to
// the entity store.
type Merger struct {
	entities entity.Store
	graph    *graph.Graph
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithMergerLogger sets the merger logger.
func WithMergerLogger(logger *slog.Logger) MergerOption {
	return func(m *Merger) { m.logger = logger }
}

// WithMergerMetrics sets the disposition metrics.
func WithMergerMetrics(mt *metrics.Metrics) MergerOption {
	return func(m *Merger) { m.metrics = mt }
}

// NewMerger constructs a Merger.
func NewMerger(entities entity.Store, g *graph.Graph, store Store, opts ...MergerOption) (*Merger, error) {
	if entities == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	if g == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if store == nil {
		return nil, fmt.Errorf("candidate store is required")
	}
	m := &Merger{
		entities: entities,
		graph:    g,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MergeResult reports the outcome of one applied merge.
type MergeResult struct {
	Survivor id.EntityID
	Absorbed id.EntityID
}

// Apply merges a confirmed duplicate pair. The survivor is the lower entity
// ID, which sorts the older row first under sequential creation. Identifiers
// transfer to the survivor, the absorbed entity gains a forward pointer, and
// the candidate is marked confirmed.
//
// Apply follows merge chains first: if either side was already merged away,
// the merge applies between the canonical heads. A pair whose heads coincide
// is already merged and is confirmed without further writes.
func (m *Merger) Apply(ctx context.Context, candidateID id.CandidateID, actor string) (*MergeResult, error) {
	c, err := m.store.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPending {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"candidate %s already %s", candidateID, c.Status)
	}

	survivor, err := m.graph.Canonicalize(ctx, c.EntityA)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", c.EntityA, err)
	}
	absorbed, err := m.graph.Canonicalize(ctx, c.EntityB)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", c.EntityB, err)
	}
	if survivor == absorbed {
		// Already merged through another pair.
		if err := m.confirm(ctx, candidateID, actor); err != nil {
			return nil, err
		}
		return &MergeResult{Survivor: survivor, Absorbed: absorbed}, nil
	}
	if absorbed.Less(survivor) {
		survivor, absorbed = absorbed, survivor
	}

	if err := m.entities.TransferIdentifiers(ctx, absorbed, survivor); err != nil {
		return nil, fmt.Errorf("transfer identifiers: %w", err)
	}
	if err := m.entities.MarkMerged(ctx, absorbed, survivor); err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
		return nil, fmt.Errorf("mark merged: %w", err)
	}
	if err := m.graph.RecordMerge(ctx, c.Kind, absorbed, survivor, "duplicate confirmed by "+actor); err != nil {
		return nil, fmt.Errorf("record merge: %w", err)
	}
	if err := m.confirm(ctx, candidateID, actor); err != nil {
		return nil, err
	}

	m.logger.Info("duplicate pair merged",
		"candidate_id", candidateID.String(),
		"survivor", survivor.String(),
		"absorbed", absorbed.String(),
		"actor", actor,
	)
	return &MergeResult{Survivor: survivor, Absorbed: absorbed}, nil
}

// Dismiss records an operator's decision that the pair is not a duplicate.
func (m *Merger) Dismiss(ctx context.Context, candidateID id.CandidateID, actor string) error {
	if err := m.store.UpdateStatus(ctx, candidateID, StatusDismissed, actor); err != nil {
		return err
	}
	m.metrics.IncrementDisposition(string(StatusDismissed))
	return nil
}

func (m *Merger) confirm(ctx context.Context, candidateID id.CandidateID, actor string) error {
	if err := m.store.UpdateStatus(ctx, candidateID, StatusConfirmed, actor); err != nil {
		return err
	}
	m.metrics.IncrementDisposition(string(StatusConfirmed))
	return nil
}
