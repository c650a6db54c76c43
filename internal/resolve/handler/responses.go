package handler

import (
	"encoding/json"
	"time"

	"trapper/internal/resolve"
)

// DispositionRequest is the review write-back body.
type DispositionRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// DecisionResponse is the wire shape of one decision-log row.
type DecisionResponse struct {
	ID              string          `json:"id"`
	Type            string          `json:"decisionType"`
	EntityID        string          `json:"entityId,omitempty"`
	MatchedEntityID string          `json:"matchedEntityId,omitempty"`
	Confidence      float64         `json:"confidenceScore"`
	SourceSystem    string          `json:"sourceSystem"`
	SourceRecordID  string          `json:"sourceRecordId,omitempty"`
	InputName       string          `json:"inputName,omitempty"`
	InputEmail      string          `json:"inputEmail,omitempty"`
	InputPhone      string          `json:"inputPhone,omitempty"`
	Evidence        json.RawMessage `json:"evidence,omitempty"`
	ReviewStatus    string          `json:"reviewStatus,omitempty"`
	ReviewedBy      string          `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// FromDecision maps a decision row to its response shape.
func FromDecision(d *resolve.MatchDecision) DecisionResponse {
	resp := DecisionResponse{
		ID:             d.ID.String(),
		Type:           d.Type.String(),
		Confidence:     d.Confidence,
		SourceSystem:   d.SourceSystem,
		SourceRecordID: d.SourceRecordID,
		InputName:      d.InputName,
		InputEmail:     d.InputEmail,
		InputPhone:     d.InputPhone,
		Evidence:       d.Evidence,
		ReviewStatus:   string(d.ReviewStatus),
		ReviewedBy:     d.ReviewedBy,
		ReviewedAt:     d.ReviewedAt,
		CreatedAt:      d.CreatedAt,
	}
	if d.EntityID != nil {
		resp.EntityID = d.EntityID.String()
	}
	if d.MatchedEntityID != nil {
		resp.MatchedEntityID = d.MatchedEntityID.String()
	}
	return resp
}

// FromDecisions maps a page of decision rows.
func FromDecisions(decisions []*resolve.MatchDecision) []DecisionResponse {
	out := make([]DecisionResponse, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, FromDecision(d))
	}
	return out
}
