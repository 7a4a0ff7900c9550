package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/finwhiz/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

type Embedder struct {
	embedder embeddings.Embedder
	config   *ai.Config
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for embeddings
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.Token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	// EmbedTexts hands langchaingo at most EmbeddingBatchSize texts at a
	// time, so each EmbedDocuments call is a single request.
	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.EmbeddingBatchSize),
	)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Embedder{
		embedder: embedder,
		config:   config,
		limiter:  limiter,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

func (e *Embedder) EmbedText(ctx context.Context, mode ai.Mode, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "mode", mode, "length", len(text))

	vectors, err := e.EmbedTexts(ctx, mode, []string{text})
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}

	return vectors[0], nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, mode ai.Mode, texts []string) ([][]float32, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ai.ErrInvalidMode, mode)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.logger.Debug("generating embeddings for texts", "mode", mode, "count", len(texts))

	prefix := e.config.Prefix(mode)
	inputs := texts
	if prefix != "" {
		inputs = make([]string, len(texts))
		for i, text := range texts {
			inputs[i] = prefix + text
		}
	}

	// One limiter token per request sent to the embedding host.
	size := e.config.EmbeddingBatchSize
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(inputs); start += size {
		end := min(start+size, len(inputs))
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		batch, err := e.embedder.EmbedDocuments(ctx, inputs[start:end])
		if err != nil {
			e.logger.Error("failed to generate embeddings", "offset", start, "count", end-start, "err", err)
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingMismatch, len(texts), len(vectors))
	}

	return vectors, nil
}
