package core

import "strconv"

// DefaultChunkSize is the default maximum chunk length in characters.
const DefaultChunkSize = 500

// ChunkText splits text into consecutive, non-overlapping windows of at most
// maxChars characters (runes). The last window may be shorter. Empty text
// yields nil, never a zero-length chunk.
func ChunkText(text string, maxChars int) []string {
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+maxChars-1)/maxChars)
	for start := 0; start < len(runes); start += maxChars {
		end := min(start+maxChars, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// ChunkID returns the id of the chunk at index within the record.
func ChunkID(recordID string, index int) string {
	return recordID + "_chunk" + strconv.Itoa(index)
}

// ChunkRecord splits a record into chunks carrying its normalized metadata.
// Records with absent or empty text produce no chunks.
func ChunkRecord(record *SourceRecord, maxChars int) []*Chunk {
	texts := ChunkText(record.Body(), maxChars)
	if len(texts) == 0 {
		return nil
	}

	metadata := Normalize(record)
	chunks := make([]*Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &Chunk{
			ID:       ChunkID(record.ID, i),
			Index:    i,
			Text:     text,
			Metadata: &metadata,
		}
	}
	return chunks
}
