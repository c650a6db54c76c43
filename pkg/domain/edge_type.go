package domain

import dErrors "trapper/pkg/domain-errors"

// EdgeType is the relationship a directed identity edge asserts between two
// entities of the same kind. Edges are append-only and form the audit trail
// for every automated identity decision.
type EdgeType string

const (
	// EdgeMergedInto records absorption: the source entity is superseded by
	// the target. Confidence is always 1.0 and the per-kind merged-into edge
	// set must stay acyclic.
	EdgeMergedInto EdgeType = "merged_into"
	// EdgeSameAs asserts equivalence without absorption; may carry <1.0
	// confidence.
	EdgeSameAs EdgeType = "same_as"
	// EdgeRelatedTo records association without identity equivalence.
	EdgeRelatedTo EdgeType = "related_to"
	// EdgeHouseholdMember records a distinct person sharing a contact
	// identifier with another known person.
	EdgeHouseholdMember EdgeType = "household_member"
)

var validEdgeTypes = map[EdgeType]bool{
	EdgeMergedInto:      true,
	EdgeSameAs:          true,
	EdgeRelatedTo:       true,
	EdgeHouseholdMember: true,
}

// ParseEdgeType constructs an EdgeType from external input.
func ParseEdgeType(s string) (EdgeType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "edge type cannot be empty")
	}
	e := EdgeType(s)
	if !e.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid edge type")
	}
	return e, nil
}

// IsValid checks if the edge type is one of the supported enum values.
func (e EdgeType) IsValid() bool {
	return validEdgeTypes[e]
}

// String returns the string representation of the edge type.
func (e EdgeType) String() string {
	return string(e)
}
