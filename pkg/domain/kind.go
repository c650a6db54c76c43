package domain

import dErrors "trapper/pkg/domain-errors"

// EntityKind is the kind of entity a record resolves to.
// Invariant: identity edges only connect entities of the same kind.
type EntityKind string

const (
	KindPerson EntityKind = "person"
	KindPlace  EntityKind = "place"
	KindAnimal EntityKind = "animal"
)

// validEntityKinds is the single source of truth for valid kinds.
var validEntityKinds = map[EntityKind]bool{
	KindPerson: true,
	KindPlace:  true,
	KindAnimal: true,
}

// ParseEntityKind constructs an EntityKind from external input.
func ParseEntityKind(s string) (EntityKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity kind cannot be empty")
	}
	k := EntityKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid entity kind")
	}
	return k, nil
}

// IsValid checks if the kind is one of the supported enum values.
func (k EntityKind) IsValid() bool {
	return validEntityKinds[k]
}

// String returns the string representation of the kind.
func (k EntityKind) String() string {
	return string(k)
}
