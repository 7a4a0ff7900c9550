// Package qdrant implements storage.VectorIndex on a qdrant collection.
//
// Chunk ids are strings while qdrant keys points by number or uuid, so each
// point id is the content hash of its chunk id and the chunk id itself
// travels in the payload.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/storage"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys
const (
	keyChunkID   = "chunk_id"
	keyDocument  = "document"
	keyTitle     = "title"
	keySourceURL = "source_url"
	keyDocType   = "doctype"
	keyAuthority = "authority"
	keyYear      = "year"
)

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// pointsClient is the subset of *qdrant.Client the index uses.
type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Close() error
}

type Index struct {
	client     pointsClient
	collection string
	logger     *slog.Logger

	mu        sync.Mutex
	dimension int
	exists    bool
}

var _ storage.VectorIndex = (*Index)(nil)

type Option func(*Index) error

func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		i.logger = logger
		return nil
	}
}

// Open connects to qdrant. The collection is created on the first Add, when
// the vector dimension is known.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Index, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", storage.ErrInvalidQuery)
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return newIndex(ctx, client, cfg.Collection, opts...)
}

// newIndex takes ownership of client and closes it on failure.
func newIndex(ctx context.Context, client pointsClient, collection string, opts ...Option) (*Index, error) {
	idx := &Index{
		client:     client,
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			client.Close()
			return nil, err
		}
	}
	idx.logger = idx.logger.With("component", "qdrant-index", "collection", collection)

	if err := idx.refresh(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

// refresh loads existence and dimension of the collection from the server.
func (i *Index) refresh(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", i.collection, err)
	}
	i.exists = exists
	if !exists {
		return nil
	}

	info, err := i.client.GetCollectionInfo(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("reading collection %s: %w", i.collection, err)
	}
	i.dimension = int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	return nil
}

func (i *Index) ensureCollection(ctx context.Context, dimension int) error {
	if i.exists {
		return nil
	}
	err := i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", i.collection, err)
	}
	i.exists = true
	i.dimension = dimension
	i.logger.Info("created collection", "dimension", dimension)
	return nil
}

func (i *Index) Add(ctx context.Context, entries ...*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dimension := i.dimension
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, entry := range entries {
		if err := core.ValidateIndexEntry(entry); err != nil {
			return err
		}
		if dimension == 0 {
			dimension = len(entry.Vector)
		}
		if len(entry.Vector) != dimension {
			return fmt.Errorf("%w: entry %s has %d, index has %d",
				storage.ErrDimensionMismatch, entry.ID, len(entry.Vector), dimension)
		}
		points = append(points, toPoint(entry))
	}

	if err := i.ensureCollection(ctx, dimension); err != nil {
		return err
	}

	wait := true
	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}
	i.logger.Debug("upserted points", "count", len(points))
	return nil
}

func (i *Index) Query(ctx context.Context, vector []float32, topK int) ([]*core.SearchResult, error) {
	i.mu.Lock()
	dimension, exists := i.dimension, i.exists
	i.mu.Unlock()

	if err := storage.CheckQuery(vector, topK, dimension); err != nil {
		return nil, err
	}
	results := make([]*core.SearchResult, 0)
	if !exists {
		return results, nil
	}

	limit := uint64(topK)
	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", i.collection, err)
	}

	for _, point := range points {
		results = append(results, &core.SearchResult{
			Entry: fromPayload(point.GetPayload()),
			Score: point.GetScore(),
		})
	}
	return results, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	i.mu.Lock()
	exists := i.exists
	i.mu.Unlock()
	if !exists {
		return 0, nil
	}

	exact := true
	n, err := i.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: i.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("counting collection %s: %w", i.collection, err)
	}
	return int(n), nil
}

func (i *Index) Close() error {
	return i.client.Close()
}

// PointID derives the numeric point id of a chunk id.
func PointID(chunkID string) uint64 {
	return uint64(core.IDFromContent(chunkID))
}

func toPoint(entry *core.IndexEntry) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(PointID(entry.ID)),
		Vectors: qdrant.NewVectorsDense(entry.Vector),
		Payload: qdrant.NewValueMap(map[string]any{
			keyChunkID:   entry.ID,
			keyDocument:  entry.Document,
			keyTitle:     entry.Metadata.Title,
			keySourceURL: entry.Metadata.SourceURL,
			keyDocType:   entry.Metadata.DocType,
			keyAuthority: entry.Metadata.Authority,
			keyYear:      entry.Metadata.Year,
		}),
	}
}

func fromPayload(payload map[string]*qdrant.Value) *core.IndexEntry {
	return &core.IndexEntry{
		ID:       payload[keyChunkID].GetStringValue(),
		Document: payload[keyDocument].GetStringValue(),
		Metadata: core.Metadata{
			Title:     payload[keyTitle].GetStringValue(),
			SourceURL: payload[keySourceURL].GetStringValue(),
			DocType:   payload[keyDocType].GetStringValue(),
			Authority: payload[keyAuthority].GetStringValue(),
			Year:      int(payload[keyYear].GetIntegerValue()),
		},
	}
}
