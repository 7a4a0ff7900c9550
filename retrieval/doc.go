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

// Package retrieval answers queries with context assembled from a vector index.
//
// The Service encodes a query in query mode, asks the index for the nearest
// chunks and joins their documents, most similar first, with newlines. When
// nothing matches it returns the NoContext sentinel instead of an error.
//
// The embedder is loaded on first use, so a server can start and report
// healthy before the embedding backend is reachable.
package retrieval
