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

// Package storage provides the vector index abstraction for finwhiz.
//
// This package defines the VectorIndex interface that decouples the ingestion
// pipeline and the retrieval service from the index implementation. Backends
// can be used interchangeably:
//
//   - storage/badger: embedded BadgerDB store with a brute-force cosine scan
//   - storage/qdrant: remote qdrant collection
//
// storage/catalog records the collections held by a local index directory.
//
// # Constructors
//
// Backend constructors return concrete types. Callers that only need index
// operations hold them as a VectorIndex:
//
//	index, err := badger.NewIndex(backend) // *badger.Index is a storage.VectorIndex
//
// The reembedder keeps the concrete *badger.Index because it also needs Scan.
//
// # Semantics
//
//   - Add upserts: re-adding an entry id overwrites the previous entry.
//   - Query ranks entries by cosine similarity, highest first, and returns at
//     most topK results. An empty index yields an empty result, not an error.
//   - A backend fixes its vector dimension on the first Add; later entries or
//     queries of another dimension fail with ErrDimensionMismatch.
//
// # Thread Safety
//
// All implementations are safe for concurrent queries. Writes assume a
// single writer per index.
package storage
