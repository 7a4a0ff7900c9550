package storage

import (
	"context"

	"github.com/poiesic/finwhiz/core"
)

type VectorIndex interface {
	// Add upserts entries. Entries with an id already present replace the
	// stored entry.
	Add(ctx context.Context, entries ...*core.IndexEntry) error

	// Query returns up to topK entries ranked by cosine similarity to vector,
	// highest first. Returns an empty slice when the index is empty.
	// topK must be positive.
	Query(ctx context.Context, vector []float32, topK int) ([]*core.SearchResult, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the index.
	Close() error
}

// Scanner is implemented by indexes that can enumerate their entries.
type Scanner interface {
	// Scan calls fn with successive batches of at most batchSize entries in
	// id order. Iteration stops at the first error returned by fn.
	Scan(ctx context.Context, batchSize int, fn func([]*core.IndexEntry) error) error
}

// CheckQuery validates query arguments against an index dimension. A zero
// dimension means the index has not been written yet.
func CheckQuery(vector []float32, topK, dimension int) error {
	if topK <= 0 {
		return ErrInvalidQuery
	}
	if len(vector) == 0 {
		return ErrInvalidQuery
	}
	if dimension > 0 && len(vector) != dimension {
		return ErrDimensionMismatch
	}
	return nil
}
