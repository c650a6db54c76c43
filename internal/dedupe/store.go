package dedupe

import (
	"context"

	id "trapper/pkg/domain"
)

// Store persists duplicate candidate pairs.
type Store interface {
	// Upsert inserts the pair or refreshes the existing row for the same
	// ordered pair, keeping the strongest tier and the highest confidence.
	// Pairs already confirmed or dismissed are left untouched.
	Upsert(ctx context.Context, c *Candidate) error
	Get(ctx context.Context, candidateID id.CandidateID) (*Candidate, error)
	// ListByStatus pages pairs for review, strongest tier first.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Candidate, error)
	// UpdateStatus records an operator disposition on a pending pair.
	UpdateStatus(ctx context.Context, candidateID id.CandidateID, status Status, actor string) error
}
