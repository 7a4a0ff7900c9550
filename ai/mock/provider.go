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

package mock

import "github.com/poiesic/finwhiz/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock embedder and generator instances.
type MockProvider struct {
	embedder  *MockEmbedder
	generator *MockGenerator
	closed    bool
}

// NewMockProvider creates a mock provider with default mock services.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		generator: NewMockGenerator(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom services.
func NewMockProviderWithServices(embedder *MockEmbedder, generator *MockGenerator) *MockProvider {
	return &MockProvider{
		embedder:  embedder,
		generator: generator,
	}
}

func (m *MockProvider) Embedder() ai.Embedder {
	return m.embedder
}

func (m *MockProvider) Generator() ai.Generator {
	return m.generator
}

func (m *MockProvider) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockProvider) Closed() bool {
	return m.closed
}

// GetMockEmbedder returns the concrete mock embedder for test assertions.
func (m *MockProvider) GetMockEmbedder() *MockEmbedder {
	return m.embedder
}

// GetMockGenerator returns the concrete mock generator for test assertions.
func (m *MockProvider) GetMockGenerator() *MockGenerator {
	return m.generator
}
