// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a 64-bit content hash. Backends that cannot key points by string
// (qdrant) use it to derive stable numeric ids from chunk ids.
type ID uint64

// IDFromContent generates a deterministic ID from content using BLAKE2b hashing.
// The same content will always produce the same ID.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// SourceRecord is one document unit as read from storage.
// Optional fields are pointers so absence and null can be told apart from
// zero values.
type SourceRecord struct {
	ID        string  `json:"id"`
	Text      *string `json:"text,omitempty"`
	Title     *string `json:"title,omitempty"`
	SourceURL *string `json:"source_url,omitempty"`
	DocType   *string `json:"doctype,omitempty"`
	Authority *string `json:"authority,omitempty"`
	Year      *int    `json:"year,omitempty"`
}

// Body returns the record text, or "" when absent.
func (r *SourceRecord) Body() string {
	if r == nil || r.Text == nil {
		return ""
	}
	return *r.Text
}

// Metadata is the normalized metadata attached to every chunk of a record.
// Every field always holds a concrete value.
type Metadata struct {
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	DocType   string `json:"doctype"`
	Authority string `json:"authority"`
	Year      int    `json:"year"`
}

// Map returns the metadata as a flat mapping.
func (m Metadata) Map() map[string]any {
	return map[string]any{
		"title":      m.Title,
		"source_url": m.SourceURL,
		"doctype":    m.DocType,
		"authority":  m.Authority,
		"year":       m.Year,
	}
}

// Chunk is a bounded fragment of a record's text.
type Chunk struct {
	ID       string
	Index    int
	Text     string
	Metadata *Metadata // shared by all chunks of the same record
}

// IndexEntry is what a vector index physically stores.
type IndexEntry struct {
	ID       string
	Vector   []float32
	Document string
	Metadata Metadata
}

// SearchResult is one ranked hit from a vector index query.
type SearchResult struct {
	Entry *IndexEntry
	Score float32
}
