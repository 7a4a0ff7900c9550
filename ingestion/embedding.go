package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/storage"
)

// flusher embeds a batch of chunks and writes the resulting entries.
type flusher struct {
	index    storage.VectorIndex
	embedder ai.Embedder
	logger   *slog.Logger
}

// flush performs one EmbedTexts call and one Add call for chunks.
func (f *flusher) flush(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	f.logger.Debug("generating embeddings for chunks", "chunks", len(texts))
	vectors, err := f.embedder.EmbedTexts(ctx, ai.ModePassage, texts)
	if err != nil {
		f.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(chunks), len(vectors))
	}

	entries := make([]*core.IndexEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = &core.IndexEntry{
			ID:       chunk.ID,
			Vector:   vectors[i],
			Document: chunk.Text,
			Metadata: *chunk.Metadata,
		}
	}

	if err := f.index.Add(ctx, entries...); err != nil {
		f.logger.Error("error writing entries", "entries", len(entries), "err", err)
		if errors.Is(err, storage.ErrDimensionMismatch) || errors.Is(err, core.ErrInvalidEntry) {
			return Permanent(err)
		}
		return err
	}
	return nil
}
