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

// Package finwhiz wires configuration, object storage, the vector index and
// the AI backends into a single handle.
package finwhiz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/finwhiz/ai"
	"github.com/poiesic/finwhiz/ai/openai"
	"github.com/poiesic/finwhiz/answer"
	"github.com/poiesic/finwhiz/blob"
	"github.com/poiesic/finwhiz/blob/gcs"
	"github.com/poiesic/finwhiz/blob/minio"
	"github.com/poiesic/finwhiz/config"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/indexsync"
	"github.com/poiesic/finwhiz/ingestion"
	"github.com/poiesic/finwhiz/reembed"
	"github.com/poiesic/finwhiz/retrieval"
	"github.com/poiesic/finwhiz/source"
	"github.com/poiesic/finwhiz/storage"
	"github.com/poiesic/finwhiz/storage/badger"
	"github.com/poiesic/finwhiz/storage/catalog"
	"github.com/poiesic/finwhiz/storage/qdrant"
)

var (
	// ErrConfigRequired is returned when Open is called without a config.
	ErrConfigRequired = errors.New("config required")

	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")

	// ErrNotLocal is returned for operations that need the local index backend.
	ErrNotLocal = errors.New("operation requires the local index backend")
)

// Engine owns every long-lived resource of the service.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	store     blob.Store
	ownsStore bool
	syncer    *indexsync.Manager
	noSync    bool

	mu         sync.RWMutex
	catalog    *catalog.Catalog
	collection *catalog.Collection
	local      *badger.Index
	index      storage.VectorIndex
	closed     bool

	providerMu sync.Mutex
	provider   ai.AIProvider
}

type Option func(*Engine) error

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithStore uses store instead of opening the configured bucket. The caller
// keeps ownership.
func WithStore(store blob.Store) Option {
	return func(e *Engine) error {
		e.store = store
		return nil
	}
}

// WithProvider uses provider instead of connecting to the configured hosts.
func WithProvider(provider ai.AIProvider) Option {
	return func(e *Engine) error {
		e.provider = provider
		return nil
	}
}

// WithoutSync opens the local index as is, without downloading a backup
// into an empty index directory first.
func WithoutSync() Option {
	return func(e *Engine) error {
		e.noSync = true
		return nil
	}
}

// OpenStore opens the object store named by cfg.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case config.BlobGCS:
		return gcs.Open(ctx, cfg.Blob.Bucket, cfg.Blob.CredentialsPath, gcs.WithLogger(logger))
	case config.BlobMinio:
		return minio.Open(ctx, minio.Config{
			Endpoint:  cfg.Blob.Minio.Endpoint,
			AccessKey: cfg.Blob.Minio.AccessKey,
			SecretKey: cfg.Blob.Minio.SecretKey,
			UseSSL:    cfg.Blob.Minio.UseSSL,
			Bucket:    cfg.Blob.Bucket,
		}, minio.WithLogger(logger))
	default:
		return nil, fmt.Errorf("%w: blob backend %q", config.ErrUnknownBackend, cfg.Blob.Backend)
	}
}

// NewSyncManager builds the manager that mirrors cfg's local index to store.
func NewSyncManager(store blob.Store, cfg *config.Config, logger *slog.Logger) (*indexsync.Manager, error) {
	opts := []indexsync.Option{
		indexsync.WithWorkers(cfg.Sync.Workers),
		indexsync.WithLogger(logger),
	}
	if cfg.Index.CollectionID != "" {
		opts = append(opts, indexsync.WithCollectionID(cfg.Index.CollectionID))
	} else {
		opts = append(opts, indexsync.WithCollectionResolver(indexsync.CatalogResolver(cfg.Index.Collection)))
	}
	return indexsync.NewManager(store, cfg.Index.Path, cfg.Index.BackupPrefix, opts...)
}

// Open connects to object storage and opens the configured index. With the
// local backend an empty index directory is first restored from backup.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.store == nil {
		store, err := OpenStore(ctx, cfg, e.logger)
		if err != nil {
			return nil, fmt.Errorf("opening object store: %w", err)
		}
		e.store = store
		e.ownsStore = true
	}

	if err := e.openIndex(ctx); err != nil {
		e.releaseStore()
		return nil, err
	}

	e.logger.Info("engine open", "index_backend", cfg.Index.Backend, "blob_backend", cfg.Blob.Backend)
	return e, nil
}

func (e *Engine) openIndex(ctx context.Context) error {
	switch e.cfg.Index.Backend {
	case config.IndexQdrant:
		q := e.cfg.Index.Qdrant
		index, err := qdrant.Open(ctx, qdrant.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Collection: e.cfg.Index.Collection,
		}, qdrant.WithLogger(e.logger))
		if err != nil {
			return fmt.Errorf("opening qdrant index: %w", err)
		}
		e.index = index
		return nil

	case config.IndexLocal:
		syncer, err := NewSyncManager(e.store, e.cfg, e.logger)
		if err != nil {
			return err
		}
		e.syncer = syncer
		if !e.noSync {
			if _, err := syncer.EnsureLocal(ctx); err != nil {
				return fmt.Errorf("restoring index: %w", err)
			}
		}
		return e.openLocal(ctx)

	default:
		return fmt.Errorf("%w: index backend %q", config.ErrUnknownBackend, e.cfg.Index.Backend)
	}
}

// openLocal opens the catalog and the collection's segment directory.
func (e *Engine) openLocal(ctx context.Context) error {
	cat, err := catalog.Open(e.cfg.Index.Path, catalog.WithLogger(e.logger))
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	col, err := cat.Ensure(ctx, e.cfg.Index.Collection, e.cfg.Index.CollectionID)
	if err != nil {
		cat.Close()
		return err
	}
	index, err := badger.OpenIndex(cat.SegmentDir(col.ID), badger.WithLogger(e.logger))
	if err != nil {
		cat.Close()
		return err
	}

	e.catalog = cat
	e.collection = col
	e.local = index
	e.index = index
	return nil
}

// closeLocal records the index dimension in the catalog and closes both.
func (e *Engine) closeLocal(ctx context.Context) error {
	var errs []error
	if dim := e.local.Dimension(); dim > 0 && dim != e.collection.Dimension {
		if err := e.catalog.SetDimension(ctx, e.collection.ID, dim); err != nil {
			errs = append(errs, err)
		} else {
			e.collection.Dimension = dim
		}
	}
	if err := e.local.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing index: %w", err))
	}
	if err := e.catalog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing catalog: %w", err))
	}
	e.local = nil
	e.index = nil
	e.catalog = nil
	return errors.Join(errs...)
}

func (e *Engine) releaseStore() {
	if e.ownsStore && e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Error("error closing object store", "err", err)
		}
	}
}

// Config returns the configuration the engine was opened with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Store returns the object store holding sources and backups.
func (e *Engine) Store() blob.Store {
	return e.store
}

// Index returns a view of the open vector index that stays valid across
// Persist. Closing it is a no-op; the engine owns the index.
func (e *Engine) Index() storage.VectorIndex {
	return liveIndex{e: e}
}

// Collection returns the catalog entry of the local collection, or nil with
// the qdrant backend.
func (e *Engine) Collection() *catalog.Collection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.collection == nil {
		return nil
	}
	col := *e.collection
	return &col
}

// Provider returns the AI provider, connecting on first use.
func (e *Engine) Provider(ctx context.Context) (ai.AIProvider, error) {
	e.providerMu.Lock()
	defer e.providerMu.Unlock()
	if e.provider != nil {
		return e.provider, nil
	}
	aiCfg := e.cfg.AIConfig()
	provider, err := openai.NewProvider(aiCfg)
	if err != nil {
		return nil, err
	}
	e.logger.Info("connected AI provider", "embedding_model", aiCfg.EmbeddingModel, "generator_model", aiCfg.GeneratorModel)
	e.provider = provider
	return provider, nil
}

func (e *Engine) embedder(ctx context.Context) (ai.Embedder, error) {
	provider, err := e.Provider(ctx)
	if err != nil {
		return nil, err
	}
	return provider.Embedder(), nil
}

// NewPipeline returns an ingestion pipeline configured from the engine's
// settings. opts are applied after the configured ones.
func (e *Engine) NewPipeline(ctx context.Context, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	embedder, err := e.embedder(ctx)
	if err != nil {
		return nil, err
	}
	ingest := e.cfg.Ingest
	base := []ingestion.Option{
		ingestion.WithBatchSize(ingest.BatchSize),
		ingestion.WithChunkSize(ingest.ChunkSize),
		ingestion.WithRetry(ingest.MaxAttempts, ingest.RetryDelay),
		ingestion.WithLogger(e.logger),
	}
	return ingestion.NewPipeline(e.Index(), embedder, append(base, opts...)...)
}

// Ingest reads every configured source object from the store into the index.
// progress may be nil.
func (e *Engine) Ingest(ctx context.Context, progress io.Writer) (ingestion.Stats, error) {
	var opts []ingestion.Option
	if progress != nil {
		opts = append(opts, ingestion.WithProgress(progress))
	}
	pipeline, err := e.NewPipeline(ctx, opts...)
	if err != nil {
		return ingestion.Stats{}, err
	}
	reader, err := source.NewReader(e.store, source.WithLogger(e.logger))
	if err != nil {
		return ingestion.Stats{}, err
	}
	return pipeline.IngestObjects(ctx, reader, e.cfg.Source.Prefix, e.cfg.Source.Filter)
}

// Retriever returns a retrieval service over the open index. The embedder is
// connected on the first query.
func (e *Engine) Retriever(opts ...retrieval.Option) (*retrieval.Service, error) {
	base := []retrieval.Option{retrieval.WithLogger(e.logger)}
	return retrieval.NewService(e.Index(), e.embedder, append(base, opts...)...)
}

// Answerer returns an answer service backed by retriever and the generator.
func (e *Engine) Answerer(ctx context.Context, retriever answer.Retriever) (*answer.Service, error) {
	provider, err := e.Provider(ctx)
	if err != nil {
		return nil, err
	}
	return answer.NewService(retriever, provider.Generator(), answer.WithLogger(e.logger))
}

// Reembedder returns a reembedder over the local index. It must not run
// concurrently with Persist.
func (e *Engine) Reembedder(ctx context.Context, rcfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	e.mu.RLock()
	local := e.local
	e.mu.RUnlock()
	if local == nil {
		if e.cfg.Index.Backend != config.IndexLocal {
			return nil, ErrNotLocal
		}
		return nil, ErrEngineClosed
	}
	embedder, err := e.embedder(ctx)
	if err != nil {
		return nil, err
	}
	return reembed.NewReembedder(local, embedder, rcfg, progress)
}

// Persist uploads the local index to the backup prefix. The index is closed
// for the upload so the copied files are consistent, then reopened.
func (e *Engine) Persist(ctx context.Context) (indexsync.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return indexsync.Stats{}, ErrEngineClosed
	}
	if e.syncer == nil {
		return indexsync.Stats{}, ErrNotLocal
	}

	if err := e.closeLocal(ctx); err != nil {
		return indexsync.Stats{}, err
	}
	stats, err := e.syncer.PersistRemote(ctx)
	if reopenErr := e.openLocal(ctx); reopenErr != nil {
		e.closed = true
		return stats, errors.Join(err, fmt.Errorf("reopening index: %w", reopenErr))
	}
	return stats, err
}

// Close releases the index, the AI provider and an owned object store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if e.local != nil {
		if err := e.closeLocal(context.Background()); err != nil {
			errs = append(errs, err)
		}
	} else if e.index != nil {
		if err := e.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing index: %w", err))
		}
		e.index = nil
	}

	e.providerMu.Lock()
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}
	e.providerMu.Unlock()

	e.releaseStore()
	return errors.Join(errs...)
}

// liveIndex forwards to whichever index the engine has open.
type liveIndex struct {
	e *Engine
}

var _ storage.VectorIndex = liveIndex{}

func (l liveIndex) Add(ctx context.Context, entries ...*core.IndexEntry) error {
	l.e.mu.RLock()
	defer l.e.mu.RUnlock()
	if l.e.index == nil {
		return ErrEngineClosed
	}
	return l.e.index.Add(ctx, entries...)
}

func (l liveIndex) Query(ctx context.Context, vector []float32, topK int) ([]*core.SearchResult, error) {
	l.e.mu.RLock()
	defer l.e.mu.RUnlock()
	if l.e.index == nil {
		return nil, ErrEngineClosed
	}
	return l.e.index.Query(ctx, vector, topK)
}

func (l liveIndex) Count(ctx context.Context) (int, error) {
	l.e.mu.RLock()
	defer l.e.mu.RUnlock()
	if l.e.index == nil {
		return 0, ErrEngineClosed
	}
	return l.e.index.Count(ctx)
}

func (l liveIndex) Close() error {
	return nil
}
