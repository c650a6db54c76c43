package domain

import dErrors "trapper/pkg/domain-errors"

// DecisionType is the terminal outcome of a single resolution attempt.
// Every attempt ends in exactly one of these; there are no intermediate
// persisted states.
type DecisionType string

const (
	// DecisionAutoMatch links the input to an existing canonical entity.
	DecisionAutoMatch DecisionType = "auto_match"
	// DecisionHouseholdMember creates a new entity related to (but distinct
	// from) the matched one: shared phone, different person.
	DecisionHouseholdMember DecisionType = "household_member"
	// DecisionNeedsReview creates a new entity but flags the decision for
	// manual reconciliation; ambiguous evidence is never silently merged.
	DecisionNeedsReview DecisionType = "needs_review"
	// DecisionNewEntity creates a fresh entity with no linkage.
	DecisionNewEntity DecisionType = "new_entity"
	// DecisionSkeleton creates a provisional entity from a trusted source
	// that supplied a name but no usable contact identifier.
	DecisionSkeleton DecisionType = "skeleton"
	// DecisionExcluded rejects the input as not an individual person.
	DecisionExcluded DecisionType = "excluded"
	// DecisionOrgRepresentative redirects an organization input to its
	// designated representative person.
	DecisionOrgRepresentative DecisionType = "org_representative"
	// DecisionNoIdentifiers rejects an input with no usable contact identifier.
	DecisionNoIdentifiers DecisionType = "no_identifiers"
	// DecisionBlacklistedIdentifier rejects an input whose only usable
	// identifier is a known shared/placeholder value.
	DecisionBlacklistedIdentifier DecisionType = "blacklisted_identifier"
)

var validDecisionTypes = map[DecisionType]bool{
	DecisionAutoMatch:             true,
	DecisionHouseholdMember:       true,
	DecisionNeedsReview:           true,
	DecisionNewEntity:             true,
	DecisionSkeleton:              true,
	DecisionExcluded:              true,
	DecisionOrgRepresentative:     true,
	DecisionNoIdentifiers:         true,
	DecisionBlacklistedIdentifier: true,
}

// ParseDecisionType constructs a DecisionType from external input.
func ParseDecisionType(s string) (DecisionType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "decision type cannot be empty")
	}
	d := DecisionType(s)
	if !d.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid decision type")
	}
	return d, nil
}

// IsValid checks if the decision type is one of the supported enum values.
func (d DecisionType) IsValid() bool {
	return validDecisionTypes[d]
}

// String returns the string representation of the decision type.
func (d DecisionType) String() string {
	return string(d)
}

// CreatesEntity reports whether this outcome creates a new entity.
func (d DecisionType) CreatesEntity() bool {
	switch d {
	case DecisionHouseholdMember, DecisionNeedsReview, DecisionNewEntity, DecisionSkeleton:
		return true
	}
	return false
}

// Rejected reports whether this outcome produced no entity linkage at all.
func (d DecisionType) Rejected() bool {
	switch d {
	case DecisionExcluded, DecisionNoIdentifiers, DecisionBlacklistedIdentifier:
		return true
	}
	return false
}
