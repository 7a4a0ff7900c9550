package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/storage"
)

// NoContext is returned by Retrieve when the index holds no matching entries.
const NoContext = "No relevant context found in vector database."

// DefaultTopK is used when a caller passes a non-positive topK.
const DefaultTopK = 5

// EmbedderLoader constructs the embedder on first use.
type EmbedderLoader func(ctx context.Context) (ai.Embedder, error)

type Service struct {
	index       storage.VectorIndex
	loader      EmbedderLoader
	defaultTopK int
	logger      *slog.Logger

	mu       sync.Mutex
	embedder ai.Embedder
}

// Option configures a Service.
type Option func(*Service) error

// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithDefaultTopK sets the result count used when callers pass topK <= 0.
func WithDefaultTopK(k int) Option {
	return func(s *Service) error {
		if k < 1 {
			return storage.ErrInvalidQuery
		}
		s.defaultTopK = k
		return nil
	}
}

// NewService creates a retrieval service that calls loader the first time a
// query needs an embedder. A failed load is retried on the next query.
func NewService(index storage.VectorIndex, loader EmbedderLoader, opts ...Option) (*Service, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if loader == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Service{
		index:       index,
		loader:      loader,
		defaultTopK: DefaultTopK,
		logger:      slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "retrieval")

	return s, nil
}

// NewServiceWithEmbedder creates a retrieval service around a ready embedder.
func NewServiceWithEmbedder(index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Service, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	return NewService(index, func(context.Context) (ai.Embedder, error) {
		return embedder, nil
	}, opts...)
}

func (s *Service) loadEmbedder(ctx context.Context) (ai.Embedder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedder != nil {
		return s.embedder, nil
	}

	s.logger.Info("loading embedder")
	embedder, err := s.loader(ctx)
	if err != nil {
		s.logger.Error("error loading embedder", "err", err)
		return nil, err
	}
	s.embedder = embedder
	return embedder, nil
}

// Retrieve returns the documents of the topK entries nearest to query,
// joined by newlines in ranked order, or NoContext when nothing matches.
// Any string is embedded as given, including an empty one.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	return s.RetrieveWithMonitor(ctx, query, topK, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (s *Service) RetrieveWithMonitor(ctx context.Context, query string, topK int, monitor Monitor) (string, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	results, err := s.search(ctx, query, topK, monitor)
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		monitor.Finish(NoContext)
		return NoContext, nil
	}

	documents := make([]string, len(results))
	for i, result := range results {
		documents[i] = result.Entry.Document
	}
	joined := strings.Join(documents, "\n")
	monitor.Finish(joined)
	return joined, nil
}

// Search returns the ranked results themselves.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]*core.SearchResult, error) {
	return s.search(ctx, query, topK, &noopMonitor{})
}

func (s *Service) search(ctx context.Context, query string, topK int, monitor Monitor) ([]*core.SearchResult, error) {
	if topK <= 0 {
		topK = s.defaultTopK
	}
	monitor.Start(query, topK)

	embedder, err := s.loadEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	vector, err := embedder.EmbedText(ctx, ai.ModeQuery, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(vector)

	results, err := s.index.Query(ctx, vector, topK)
	if err != nil {
		s.logger.Error("error querying index", "err", err)
		return nil, err
	}
	monitor.AfterQuery(results)

	s.logger.Debug("retrieved context", "top_k", topK, "hits", len(results))
	return results, nil
}
