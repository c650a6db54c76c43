// Package resolve is the online resolution path: one normalized input record
// in, one terminal decision out. Side effects on the entity store and the
// identity graph happen only on the winning transition.
package resolve

import (
	"encoding/json"
	"time"

	id "trapper/pkg/domain"
)

// Input is one record to resolve. Identifier fields are raw; the resolver
// normalizes them itself so callers cannot bypass canonicalization.
type Input struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Address   string `json:"address,omitempty"`
	// SourceSystem names the upstream adapter that produced this record.
	SourceSystem string `json:"sourceSystem"`
	// SourceRecordID is the upstream primary key, kept as a legacy-key
	// identifier so profile updates find their earlier skeleton.
	SourceRecordID string `json:"sourceRecordId,omitempty"`
}

// Outcome is what a resolution attempt returns to the caller.
type Outcome struct {
	DecisionID id.DecisionID   `json:"decisionId"`
	Type       id.DecisionType `json:"decisionType"`
	// EntityID is the linked or created entity; absent on rejections.
	EntityID   *id.EntityID `json:"entityId,omitempty"`
	Confidence float64      `json:"confidenceScore"`
	// HouseholdID is the existing entity a household member was linked to.
	HouseholdID *id.EntityID `json:"householdId,omitempty"`
}

// ReviewStatus tracks operator disposition of a flagged decision.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewAccepted ReviewStatus = "accepted"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus constructs a ReviewStatus from external input.
func ParseReviewStatus(s string) (ReviewStatus, bool) {
	switch ReviewStatus(s) {
	case ReviewPending, ReviewAccepted, ReviewRejected:
		return ReviewStatus(s), true
	}
	return "", false
}

// MatchDecision is one row of the append-only decision log, the system of
// record for every resolution attempt, including rejections.
type MatchDecision struct {
	ID   id.DecisionID
	Type id.DecisionType
	// EntityID is the linked or created entity, if any.
	EntityID *id.EntityID
	// MatchedEntityID is the top-scoring existing entity, set for household
	// and review outcomes where it differs from EntityID.
	MatchedEntityID *id.EntityID
	Confidence      float64
	SourceSystem    string
	SourceRecordID  string
	// Normalized input snapshot, kept so reviewers see what was actually
	// compared, not what the adapter sent.
	InputName  string
	InputEmail string
	InputPhone string
	// Evidence is the full score breakdown as JSON.
	Evidence     json.RawMessage
	ReviewStatus ReviewStatus
	ReviewedBy   string
	ReviewedAt   *time.Time
	CreatedAt    time.Time
}

// Evidence is the serialized score breakdown attached to each decision.
type Evidence struct {
	Candidates []CandidateEvidence `json:"candidates,omitempty"`
	// ExclusionRule is the pattern that rejected or redirected the input.
	ExclusionRule string `json:"exclusionRule,omitempty"`
	// BlacklistedIdentifiers lists identifier values treated as absent.
	BlacklistedIdentifiers []string `json:"blacklistedIdentifiers,omitempty"`
	// IdentifierConflict reports that two identifier types matched two
	// different canonical entities.
	IdentifierConflict bool `json:"identifierConflict,omitempty"`
	// ConstraintRetry reports that creation lost a uniqueness race and the
	// attempt was retried as a match.
	ConstraintRetry bool `json:"constraintRetry,omitempty"`
	// SkeletonPromoted reports an in-place promotion of the caller's own
	// earlier skeleton.
	SkeletonPromoted bool `json:"skeletonPromoted,omitempty"`
	// SkeletonMerged is the skeleton absorbed into the matched entity.
	SkeletonMerged string `json:"skeletonMerged,omitempty"`
	// LegacyKeyMatch reports that the input's upstream record key already
	// belonged to a full entity and the record was routed back to it.
	LegacyKeyMatch bool `json:"legacyKeyMatch,omitempty"`
}

// CandidateEvidence is one scored candidate in the evidence trail.
type CandidateEvidence struct {
	EntityID       string   `json:"entityId"`
	Total          float64  `json:"total"`
	EmailScore     float64  `json:"emailScore,omitempty"`
	PhoneScore     float64  `json:"phoneScore,omitempty"`
	NameScore      float64  `json:"nameScore,omitempty"`
	AddressScore   float64  `json:"addressScore,omitempty"`
	NameSimilarity float64  `json:"nameSimilarity,omitempty"`
	Household      bool     `json:"household,omitempty"`
	MatchedOn      []string `json:"matchedOn,omitempty"`
}
