package handler

import (
	"time"

	"trapper/internal/dedupe"
)

// DispositionRequest is the review write-back body.
type DispositionRequest struct {
	Action string `json:"action"`
	Actor  string `json:"actor"`
}

// MergeResponse reports the entities involved in an applied merge.
type MergeResponse struct {
	Survivor string `json:"survivorEntityId"`
	Absorbed string `json:"absorbedEntityId"`
}

// CandidateResponse is the wire shape of one duplicate candidate pair.
type CandidateResponse struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	EntityA    string     `json:"entityA"`
	EntityB    string     `json:"entityB"`
	Tier       int        `json:"tier"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// FromCandidate maps a candidate row to its response shape.
func FromCandidate(c *dedupe.Candidate) CandidateResponse {
	return CandidateResponse{
		ID:         c.ID.String(),
		Kind:       c.Kind.String(),
		EntityA:    c.EntityA.String(),
		EntityB:    c.EntityB.String(),
		Tier:       int(c.Tier),
		Confidence: c.Confidence,
		Reason:     c.Reason,
		Status:     string(c.Status),
		ResolvedBy: c.ResolvedBy,
		ResolvedAt: c.ResolvedAt,
		CreatedAt:  c.CreatedAt,
	}
}

// FromCandidates maps a page of candidate rows.
func FromCandidates(candidates []*dedupe.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, FromCandidate(c))
	}
	return out
}
