package resolve

import (
	"context"

	id "trapper/pkg/domain"
)

// DecisionStore is the append-only match-decision log. Rows are never
// deleted; review dispositions update status fields in place.
type DecisionStore interface {
	Append(ctx context.Context, d *MatchDecision) error
	Get(ctx context.Context, decisionID id.DecisionID) (*MatchDecision, error)
	// ListByStatus pages flagged decisions for review surfaces, oldest first.
	ListByStatus(ctx context.Context, status ReviewStatus, limit int) ([]*MatchDecision, error)
	// UpdateReview records an operator disposition. Returns
	// sentinel.ErrInvalidState when the decision is not pending.
	UpdateReview(ctx context.Context, decisionID id.DecisionID, status ReviewStatus, actor string) error
}
