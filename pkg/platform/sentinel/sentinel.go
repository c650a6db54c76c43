// Package sentinel holds the error values the store layer speaks.
//
// Stores report facts about resources with these values, optionally
// wrapped; services translate them into pkg/domain-errors codes at the
// boundary. Validation failures never use sentinels, they are domain
// errors from the start.
package sentinel

import "errors"

var (
	// ErrNotFound reports that the entity, edge, or decision does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports that a uniqueness constraint rejected the write,
	// typically a concurrent claim on the same canonical identifier.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState reports an operation against an entity in the wrong
	// lifecycle state, such as merging an already-merged entity.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable reports a dependency that is temporarily unreachable.
	ErrUnavailable = errors.New("unavailable")
)
