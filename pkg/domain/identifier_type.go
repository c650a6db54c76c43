package domain

import dErrors "trapper/pkg/domain-errors"

// IdentifierType is the class of a contact identifier attached to a person.
// Invariant: a (type, normalized value) pair is unique among canonical
// entities, enforced at insert time.
type IdentifierType string

const (
	IdentifierEmail IdentifierType = "email"
	IdentifierPhone IdentifierType = "phone"
	// IdentifierLegacyKey is a source-specific primary key carried over from
	// an upstream system (spreadsheet row, vendor record id).
	IdentifierLegacyKey IdentifierType = "legacy_key"
)

var validIdentifierTypes = map[IdentifierType]bool{
	IdentifierEmail:     true,
	IdentifierPhone:     true,
	IdentifierLegacyKey: true,
}

// ParseIdentifierType constructs an IdentifierType from external input.
func ParseIdentifierType(s string) (IdentifierType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identifier type cannot be empty")
	}
	t := IdentifierType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid identifier type")
	}
	return t, nil
}

// IsValid checks if the identifier type is one of the supported enum values.
func (t IdentifierType) IsValid() bool {
	return validIdentifierTypes[t]
}

// String returns the string representation of the identifier type.
func (t IdentifierType) String() string {
	return string(t)
}

// Strength orders identifier classes for the cross-identifier conflict rule:
// when an input matches two different canonical entities via two different
// identifier types, the stronger class wins the link. Email outranks phone
// because phones are routinely shared across a household.
func (t IdentifierType) Strength() int {
	switch t {
	case IdentifierEmail:
		return 3
	case IdentifierPhone:
		return 2
	case IdentifierLegacyKey:
		return 1
	}
	return 0
}
