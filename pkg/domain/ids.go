// Package domain holds the shared identifier and enum types for the
// resolution engine. IDs are typed UUIDs so an entity ID can never be passed
// where a decision ID is expected.
//
// Usage: construct via the Parse* functions at trust boundaries to enforce
// validity; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "trapper/pkg/domain-errors"
)

// EntityID identifies a person, place, or animal entity.
type EntityID uuid.UUID

// DecisionID identifies one row of the match-decision log.
type DecisionID uuid.UUID

// CandidateID identifies a duplicate-cluster candidate pair.
type CandidateID uuid.UUID

// RuleID identifies an exclusion rule.
type RuleID uuid.UUID

// NewEntityID returns a fresh random entity ID.
func NewEntityID() EntityID { return EntityID(uuid.New()) }

// NewDecisionID returns a fresh random decision ID.
func NewDecisionID() DecisionID { return DecisionID(uuid.New()) }

// NewCandidateID returns a fresh random candidate ID.
func NewCandidateID() CandidateID { return CandidateID(uuid.New()) }

// NewRuleID returns a fresh random rule ID.
func NewRuleID() RuleID { return RuleID(uuid.New()) }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", what)
	}
	return u, nil
}

// ParseEntityID validates and converts an external string into an EntityID.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s, "entity id")
	return EntityID(u), err
}

// ParseDecisionID validates and converts an external string into a DecisionID.
func ParseDecisionID(s string) (DecisionID, error) {
	u, err := parseUUID(s, "decision id")
	return DecisionID(u), err
}

// ParseCandidateID validates and converts an external string into a CandidateID.
func ParseCandidateID(s string) (CandidateID, error) {
	u, err := parseUUID(s, "candidate id")
	return CandidateID(u), err
}

func (id EntityID) String() string    { return uuid.UUID(id).String() }
func (id DecisionID) String() string  { return uuid.UUID(id).String() }
func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id RuleID) String() string      { return uuid.UUID(id).String() }

// IsZero reports whether the ID is unset.
func (id EntityID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DecisionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// Less orders entity IDs bytewise. Used as the deterministic last-resort
// tie-break when candidate scores and recency are equal.
func (id EntityID) Less(other EntityID) bool {
	a, b := uuid.UUID(id), uuid.UUID(other)
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
