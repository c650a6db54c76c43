// Package dedupe is the offline duplicate-cluster detector: it scans
// already-resolved canonical entities for probable duplicates that slipped
// past the online path. Findings are surfaced for review, never auto-merged;
// only an explicit operator-confirmed batch operation applies a merge.
package dedupe

import (
	"time"

	id "trapper/pkg/domain"
)

// Status tracks the review lifecycle of a duplicate candidate pair.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDismissed Status = "dismissed"
)

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusDismissed:
		return Status(s), true
	}
	return "", false
}

// Candidate is one suspected duplicate pair. The pair is ordered (EntityA
// precedes EntityB bytewise) so re-detection upserts onto the same row.
type Candidate struct {
	ID         id.CandidateID
	Kind       id.EntityKind
	EntityA    id.EntityID
	EntityB    id.EntityID
	Tier       id.DuplicateTier
	Confidence float64
	// Reason is the human-readable evidence, e.g. the shared identifier.
	Reason     string
	Status     Status
	ResolvedBy string
	ResolvedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewCandidate builds an ordered pending pair.
func NewCandidate(kind id.EntityKind, a, b id.EntityID, tier id.DuplicateTier, confidence float64, reason string) *Candidate {
	if b.Less(a) {
		a, b = b, a
	}
	return &Candidate{
		ID:         id.NewCandidateID(),
		Kind:       kind,
		EntityA:    a,
		EntityB:    b,
		Tier:       tier,
		Confidence: confidence,
		Reason:     reason,
		Status:     StatusPending,
	}
}
