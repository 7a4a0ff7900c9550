package blob

import "errors"

var (
	ErrNotFound    = errors.New("object not found")
	ErrEmptyBucket = errors.New("bucket name cannot be empty")
	ErrInvalidName = errors.New("invalid object name")
)
