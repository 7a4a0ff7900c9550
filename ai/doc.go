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

// Package ai provides abstractions for the AI services used by finwhiz.
//
// This package defines interfaces for text embeddings and answer generation.
// The retrieval core depends on these abstractions rather than on concrete
// model clients, so tests can substitute deterministic fakes.
//
// # Interfaces
//
//   - Embedder: Generates vector embeddings from text in passage or query mode
//   - Generator: Produces an answer from a prompt
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Embedding Modes
//
// Embedding models trained for asymmetric retrieval expect documents and
// queries to be encoded differently. Chunks written to the index must use
// ModePassage and user queries must use ModeQuery. Mixing modes does not
// fail, it silently degrades ranking, so every caller passes the mode
// explicitly.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, openai.NewEmbedder) return
// interface types. Mock constructors return concrete types so tests can
// inspect call counts and inject behavior.
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, ai.ModePassage, chunks)
//	answer, err := provider.Generator().Generate(ctx, prompt)
package ai
