package catalog

import "errors"

var (
	// ErrNotFound indicates that no collection has the requested name or id.
	ErrNotFound = errors.New("collection not found")

	// ErrEmptyName indicates that a collection was registered without a name.
	ErrEmptyName = errors.New("collection name cannot be empty")

	// ErrInvalidID indicates that a collection id does not parse as a uuid.
	ErrInvalidID = errors.New("collection id must be a uuid")

	// ErrNameConflict indicates that the name is already registered under
	// a different collection id.
	ErrNameConflict = errors.New("collection name is bound to another id")
)
