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

// Package answer produces generated answers grounded in retrieved context.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/finwhiz/ai"
)

var (
	// ErrRetrieverRequired is returned when no retriever is provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrGeneratorRequired is returned when no generator is provided.
	ErrGeneratorRequired = errors.New("generator required")
)

// Retriever assembles a context string for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (string, error)
}

// BuildPrompt renders the generation prompt for a query and its context.
func BuildPrompt(query, retrieved string) string {
	var sb strings.Builder
	sb.WriteString("Answer using the following context:\n")
	sb.WriteString(retrieved)
	sb.WriteString("\n\nQuery: ")
	sb.WriteString(query)
	return sb.String()
}

type Service struct {
	retriever Retriever
	generator ai.Generator
	logger    *slog.Logger
}

type Option func(*Service) error

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

func NewService(retriever Retriever, generator ai.Generator, opts ...Option) (*Service, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	s := &Service{
		retriever: retriever,
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "answer")
	return s, nil
}

// Answer retrieves context for query and asks the generator to answer from it.
// When nothing relevant is indexed the no-context sentinel is passed through
// as the context, leaving the generator to say so.
func (s *Service) Answer(ctx context.Context, query string, topK int) (string, error) {
	retrieved, err := s.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	prompt := BuildPrompt(query, retrieved)
	s.logger.Debug("generating answer", "prompt_chars", len(prompt))

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("error generating answer", "err", err)
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return answer, nil
}
