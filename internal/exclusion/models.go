// Package exclusion gates resolution inputs that are not real individual
// people: organization names, placeholders, junk strings, and internal
// accounts. Rules are data, not code: operators amend them without a
// deployment, and every change appends an audit row.
package exclusion

import (
	"time"

	id "trapper/pkg/domain"
	dErrors "trapper/pkg/domain-errors"
)

// Stage separates the two pattern tables.
type Stage string

const (
	// StageOrganization flags strings that are clearly not individual people.
	StageOrganization Stage = "organization"
	// StageInternal flags internal staff/bot accounts. These are never
	// created as person entities.
	StageInternal Stage = "internal"
)

// IsValid checks if the stage is one of the supported enum values.
func (s Stage) IsValid() bool {
	return s == StageOrganization || s == StageInternal
}

// MatchType selects how a rule's pattern is applied to a display label.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchPrefix    MatchType = "prefix"
	MatchSubstring MatchType = "substring"
	MatchRegex     MatchType = "regex"
)

var validMatchTypes = map[MatchType]bool{
	MatchExact:     true,
	MatchPrefix:    true,
	MatchSubstring: true,
	MatchRegex:     true,
}

// ParseMatchType constructs a MatchType from external input.
func ParseMatchType(s string) (MatchType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "match type cannot be empty")
	}
	m := MatchType(s)
	if !validMatchTypes[m] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid match type")
	}
	return m, nil
}

// Rule is one row of a pattern table. Patterns are compared case-insensitively
// against the normalized display label.
type Rule struct {
	ID      id.RuleID
	Stage   Stage
	Match   MatchType
	Pattern string
	// Representative, when set on an organization rule, redirects matching
	// inputs to that person instead of rejecting them outright.
	Representative *id.EntityID
	Active         bool
	Note           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RuleChange is one audit row for a rule table mutation.
type RuleChange struct {
	RuleID    id.RuleID
	Action    string // "create", "update", "deactivate"
	Actor     string
	Detail    string
	ChangedAt time.Time
}

// Classification is the filter's verdict on a display label.
type Classification struct {
	Excluded bool
	Stage    Stage
	RuleID   id.RuleID
	Pattern  string
	// Representative is set when an organization rule designates one.
	Representative *id.EntityID
}
