package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/ingestion"
	"github.com/poiesic/finwhiz/storage"
)

// BatchProcessor re-embeds a page of entries and writes them back.
type BatchProcessor struct {
	index    storage.VectorIndex
	embedder ai.Embedder
	retry    ingestion.RetryPolicy
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(index storage.VectorIndex, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		index:    index,
		embedder: embedder,
		retry:    ingestion.RetryPolicy{MaxAttempts: maxRetries, BaseDelay: retryBaseDelay},
	}
}

// Process replaces the vector of every entry and upserts the batch.
// Entries are updated in place.
func (bp *BatchProcessor) Process(ctx context.Context, entries []*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Document
	}

	var embeddings [][]float32
	attempts, err := bp.retry.Do(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, ai.ModePassage, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", attempts, err)
	}

	if len(embeddings) != len(entries) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(entries), len(embeddings))
	}

	for i := range entries {
		entries[i].Vector = embeddings[i]
	}

	if err := bp.index.Add(ctx, entries...); err != nil {
		return fmt.Errorf("failed to update entries: %w", err)
	}
	return nil
}
