package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func TestChunkText_Coverage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
	}{
		{name: "shorter than window", text: "hello", maxChars: 500},
		{name: "exact multiple", text: strings.Repeat("a", 1000), maxChars: 500},
		{name: "with remainder", text: strings.Repeat("b", 1201), maxChars: 500},
		{name: "window of one", text: "abcdef", maxChars: 1},
		{name: "multibyte runes", text: strings.Repeat("é€", 7), maxChars: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkText(tt.text, tt.maxChars)

			runeCount := len([]rune(tt.text))
			expected := (runeCount + tt.maxChars - 1) / tt.maxChars
			require.Len(t, chunks, expected)

			assert.Equal(t, tt.text, strings.Join(chunks, ""), "chunks must reconstruct the text")
			for i, chunk := range chunks {
				n := len([]rune(chunk))
				assert.NotZero(t, n)
				if i < len(chunks)-1 {
					assert.Equal(t, tt.maxChars, n, "chunk %d should be full", i)
				} else {
					assert.LessOrEqual(t, n, tt.maxChars)
				}
			}
		})
	}
}

func TestChunkText_ShortTextIsSingleChunk(t *testing.T) {
	chunks := ChunkText("short", 500)
	assert.Equal(t, []string{"short"}, chunks)
}

func TestChunkText_Empty(t *testing.T) {
	assert.Empty(t, ChunkText("", 500))
}

func TestChunkText_DefaultSize(t *testing.T) {
	chunks := ChunkText(strings.Repeat("x", 1001), 0)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], DefaultChunkSize)
}

func TestChunkRecord_IDs(t *testing.T) {
	record := &SourceRecord{
		ID:    "doc-42",
		Text:  strPtr(strings.Repeat("z", 1200)),
		Title: strPtr("Margin rules"),
	}

	chunks := ChunkRecord(record, 500)
	require.Len(t, chunks, 3)

	seen := make(map[string]bool)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, ChunkID("doc-42", i), chunk.ID)
		assert.True(t, strings.HasPrefix(chunk.ID, "doc-42_chunk"))
		assert.False(t, seen[chunk.ID], "duplicate chunk id %s", chunk.ID)
		seen[chunk.ID] = true
	}
	assert.Equal(t, "doc-42_chunk0", chunks[0].ID)
	assert.Equal(t, "doc-42_chunk2", chunks[2].ID)
	assert.Len(t, chunks[2].Text, 200)

	// Metadata is shared across chunks
	assert.Same(t, chunks[0].Metadata, chunks[1].Metadata)
	assert.Equal(t, "Margin rules", chunks[0].Metadata.Title)
}

func TestChunkRecord_EmptyTextExcluded(t *testing.T) {
	tests := []struct {
		name   string
		record *SourceRecord
	}{
		{name: "absent text", record: &SourceRecord{ID: "r"}},
		{name: "empty text", record: &SourceRecord{ID: "r", Text: strPtr("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ChunkRecord(tt.record, 500))
		})
	}
}
