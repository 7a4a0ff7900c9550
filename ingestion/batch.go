package ingestion

import "github.com/poiesic/finwhiz/core"

// DefaultBatchSize is the default number of chunks per flush.
const DefaultBatchSize = 64

// Batch is an ordered, bounded buffer of chunks awaiting embedding.
type Batch struct {
	capacity int
	chunks   []*core.Chunk
}

// NewBatch creates a batch holding at most capacity chunks.
func NewBatch(capacity int) (*Batch, error) {
	if capacity < 1 {
		return nil, ErrInvalidBatchSize
	}
	return &Batch{
		capacity: capacity,
		chunks:   make([]*core.Chunk, 0, capacity),
	}, nil
}

// Append adds a chunk and reports whether the batch is now full.
func (b *Batch) Append(chunk *core.Chunk) bool {
	b.chunks = append(b.chunks, chunk)
	return len(b.chunks) >= b.capacity
}

// Drain returns the buffered chunks in append order and empties the batch.
func (b *Batch) Drain() []*core.Chunk {
	drained := b.chunks
	b.chunks = make([]*core.Chunk, 0, b.capacity)
	return drained
}

// Reset discards buffered chunks.
func (b *Batch) Reset() {
	b.chunks = b.chunks[:0]
}

func (b *Batch) Len() int {
	return len(b.chunks)
}

func (b *Batch) Cap() int {
	return b.capacity
}
