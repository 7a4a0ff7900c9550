package ai

import "errors"

var (
	// ErrInvalidMode is returned when an embedding mode is neither passage nor query.
	ErrInvalidMode = errors.New("invalid embedding mode")

	// ErrEmbeddingMismatch is returned when an embedder returns a different
	// number of vectors than texts it was given.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
