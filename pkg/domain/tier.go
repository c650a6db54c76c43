package domain

import dErrors "trapper/pkg/domain-errors"

// DuplicateTier buckets a suspected duplicate pair by evidentiary strength.
// Tier 1 is strongest. A name-only pairing with no shared identifier or
// relationship context has no tier: it is excluded outright for its
// false-positive rate.
type DuplicateTier int

const (
	// TierStrongIdentifier: identical email across two canonical entities.
	TierStrongIdentifier DuplicateTier = 1
	// TierWeakIdentifierNameMatch: identical phone plus high name similarity.
	TierWeakIdentifierNameMatch DuplicateTier = 2
	// TierWeakIdentifierNameMismatch: identical phone plus low name
	// similarity, which reads as a household candidate rather than a duplicate.
	TierWeakIdentifierNameMismatch DuplicateTier = 3
	// TierNameWithContext: identical display name plus a shared relationship
	// context (e.g. both linked to the same place).
	TierNameWithContext DuplicateTier = 4
)

// ParseDuplicateTier constructs a DuplicateTier from external input.
func ParseDuplicateTier(n int) (DuplicateTier, error) {
	t := DuplicateTier(n)
	if !t.IsValid() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "duplicate tier must be 1-4")
	}
	return t, nil
}

// IsValid checks if the tier is one of the supported values.
func (t DuplicateTier) IsValid() bool {
	return t >= TierStrongIdentifier && t <= TierNameWithContext
}
