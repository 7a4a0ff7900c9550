package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/ai/mock"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestIndex(t *testing.T) *badger.Index {
	t.Helper()
	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})
	return index
}

// seed stores n entries whose vectors all point along the first axis.
func seed(t *testing.T, index *badger.Index, n int) []*core.IndexEntry {
	t.Helper()
	entries := make([]*core.IndexEntry, n)
	for i := range n {
		entries[i] = &core.IndexEntry{
			ID:       fmt.Sprintf("rec-%02d::chunk-0", i),
			Vector:   []float32{1, 0, 0},
			Document: fmt.Sprintf("document %d", i),
			Metadata: core.Metadata{Title: fmt.Sprintf("title %d", i), SourceURL: "N/A", DocType: "N/A", Authority: "N/A", Year: 2020 + i},
		}
	}
	require.NoError(t, index.Add(context.Background(), entries...))
	return entries
}

// constantEmbedder returns the same unnormalized vector for every passage.
func constantEmbedder(vector ...float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, mode ai.Mode, texts []string) ([][]float32, error) {
		if mode != ai.ModePassage {
			return nil, ai.ErrInvalidMode
		}
		result := make([][]float32, len(texts))
		for i := range texts {
			result[i] = vector
		}
		return result, nil
	}
	return embedder
}

func TestBatchProcessor_Process(t *testing.T) {
	index := setupTestIndex(t)
	entries := seed(t, index, 2)
	ctx := context.Background()

	embedder := constantEmbedder(0, 3, 4)
	processor := NewBatchProcessor(index, embedder, 3, 10*time.Millisecond)
	require.NoError(t, processor.Process(ctx, entries))

	assert.Equal(t, []string{"document 0", "document 1"}, embedder.Texts())
	for _, original := range entries {
		stored, err := index.Get(ctx, original.ID)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{0, 0.6, 0.8}, stored.Vector, 1e-6)
		assert.Equal(t, original.Document, stored.Document)
		assert.Equal(t, original.Metadata, stored.Metadata)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	processor := NewBatchProcessor(setupTestIndex(t), embedder, 3, 10*time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), nil))
	assert.Equal(t, 0, embedder.CallCount())
}

func TestBatchProcessor_EmbeddingError(t *testing.T) {
	index := setupTestIndex(t)
	entries := seed(t, index, 1)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, ai.Mode, []string) ([][]float32, error) {
		return nil, errors.New("embedding error")
	}
	processor := NewBatchProcessor(index, embedder, 3, time.Millisecond)

	err := processor.Process(context.Background(), entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding error")
	assert.Equal(t, 3, embedder.CallCount())
}

func TestBatchProcessor_Retry(t *testing.T) {
	index := setupTestIndex(t)
	entries := seed(t, index, 1)

	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, _ ai.Mode, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("temporary error")
		}
		result := make([][]float32, len(texts))
		for i := range texts {
			result[i] = []float32{0, 1, 0}
		}
		return result, nil
	}
	processor := NewBatchProcessor(index, embedder, 3, time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), entries))
	assert.Equal(t, 2, attempts, "should retry on failure")

	stored, err := index.Get(context.Background(), entries[0].ID)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 1, 0}, stored.Vector, 1e-6)
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	index := setupTestIndex(t)
	entries := seed(t, index, 2)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, ai.Mode, []string) ([][]float32, error) {
		return [][]float32{{1, 0, 0}}, nil
	}
	processor := NewBatchProcessor(index, embedder, 1, time.Millisecond)

	err := processor.Process(context.Background(), entries)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestBatchProcessor_ContextCancellation(t *testing.T) {
	index := setupTestIndex(t)
	entries := seed(t, index, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	embedder := constantEmbedder(0, 1, 0)
	processor := NewBatchProcessor(index, embedder, 3, time.Millisecond)

	err := processor.Process(ctx, entries)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, embedder.CallCount())
}
