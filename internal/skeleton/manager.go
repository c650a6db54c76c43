// Package skeleton manages provisional person entities: created from trusted
// name-only records, later merged into a matched entity or promoted in place
// once a verifiable contact identifier arrives.
package skeleton

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trapper/internal/entity"
	"trapper/internal/graph"
	id "trapper/pkg/domain"
	"trapper/pkg/platform/sentinel"
)

// DefaultBatchSize bounds one reconciliation sweep.
const DefaultBatchSize = 100

// Manager runs the skeleton lifecycle over the shared entity store.
type Manager struct {
	entities  entity.Store
	graph     *graph.Graph
	logger    *slog.Logger
	batchSize int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithBatchSize bounds one Reconcile sweep.
func WithBatchSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// NewManager constructs a skeleton lifecycle manager.
func NewManager(entities entity.Store, g *graph.Graph, opts ...ManagerOption) (*Manager, error) {
	if entities == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	if g == nil {
		return nil, fmt.Errorf("identity graph is required")
	}
	m := &Manager{
		entities:  entities,
		graph:     g,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ApplyIdentifier reconciles a late-arriving contact identifier against a
// skeleton: if another canonical entity already owns the value the skeleton
// is merged into it, otherwise the identifier is attached and the skeleton
// promoted. Idempotent: re-applying after a merge returns the same target.
func (m *Manager) ApplyIdentifier(ctx context.Context, skeletonID id.EntityID, ident entity.Identifier) (*id.EntityID, error) {
	skel, err := m.entities.Get(ctx, skeletonID)
	if err != nil {
		return nil, err
	}
	if skel.MergedInto != nil {
		return skel.MergedInto, nil
	}
	if !skel.Skeleton {
		// Already promoted; just make sure the identifier is attached.
		if err := m.attach(ctx, skeletonID, ident); err != nil {
			return nil, err
		}
		return nil, nil
	}

	owners, err := m.entities.FindByIdentifier(ctx, skel.Kind, ident.Type, ident.Normalized)
	if err != nil {
		return nil, err
	}
	for _, owner := range owners {
		if owner.Entity.ID == skeletonID {
			continue
		}
		target := owner.Entity.ID
		if err := m.merge(ctx, skel, target); err != nil {
			return nil, err
		}
		return &target, nil
	}

	if err := m.attach(ctx, skeletonID, ident); err != nil {
		return nil, err
	}
	if err := m.entities.Promote(ctx, skeletonID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *Manager) attach(ctx context.Context, entityID id.EntityID, ident entity.Identifier) error {
	ident.EntityID = entityID
	err := m.entities.AttachIdentifier(ctx, entityID, ident)
	if err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return err
	}
	return nil
}

func (m *Manager) merge(ctx context.Context, skel *entity.Entity, into id.EntityID) error {
	if err := m.entities.TransferIdentifiers(ctx, skel.ID, into); err != nil {
		return err
	}
	if err := m.entities.MarkMerged(ctx, skel.ID, into); err != nil {
		// Another sweep already merged it; keep the run idempotent.
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil
		}
		return err
	}
	if err := m.graph.RecordMerge(ctx, skel.Kind, skel.ID, into, "skeleton reconciled into matched entity"); err != nil {
		return err
	}
	m.logger.Info("skeleton merged",
		"skeleton_id", skel.ID.String(),
		"into", into.String(),
	)
	return nil
}

// Stats summarizes one reconciliation sweep.
type Stats struct {
	Scanned  int
	Promoted int
	// Remaining skeletons still lack a contact identifier.
	Remaining int
}

// Reconcile sweeps one bounded batch of skeletons and promotes every one
// that has acquired a contact identifier. Name-only skeletons are left for a
// later profile update. Safe to re-run; cancellation leaves partial progress,
// never an inconsistent record.
func (m *Manager) Reconcile(ctx context.Context) (Stats, error) {
	var stats Stats
	skeletons, err := m.entities.ListSkeletons(ctx, m.batchSize)
	if err != nil {
		return stats, err
	}

	for _, skel := range skeletons {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++

		idents, err := m.entities.Identifiers(ctx, skel.ID)
		if err != nil {
			return stats, err
		}
		if !hasContactIdentifier(idents) {
			stats.Remaining++
			continue
		}
		if err := m.entities.Promote(ctx, skel.ID); err != nil {
			return stats, err
		}
		stats.Promoted++
	}
	return stats, nil
}

func hasContactIdentifier(idents []entity.Identifier) bool {
	for _, ident := range idents {
		if ident.Type == id.IdentifierEmail || ident.Type == id.IdentifierPhone {
			return true
		}
	}
	return false
}
