package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/finwhiz/core"
	"github.com/poiesic/finwhiz/storage"
)

// writeChunkSize bounds the number of entries written per transaction.
const writeChunkSize = 256

// Index implements storage.VectorIndex on a Backend. Entries are stored under
// entry:<id> with unit-length vectors, so cosine similarity reduces to a dot
// product at query time.
type Index struct {
	backend   *Backend
	ownsDB    bool
	logger    *slog.Logger
	mu        sync.RWMutex
	dimension int
}

var (
	_ storage.VectorIndex = (*Index)(nil)
	_ storage.Scanner     = (*Index)(nil)
)

type Option func(*Index) error

func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		i.logger = logger
		return nil
	}
}

// NewIndex creates an index over backend. The caller keeps ownership of the
// backend and closes it after the index.
func NewIndex(backend *Backend, opts ...Option) (*Index, error) {
	idx := &Index{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	idx.logger = idx.logger.With("component", "badger-index")

	if err := idx.loadDimension(); err != nil {
		return nil, err
	}
	return idx, nil
}

// OpenIndex opens a persistent index in directory path. Closing the index
// closes the underlying database.
func OpenIndex(path string, opts ...Option) (*Index, error) {
	idx := &Index{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}

	backend, err := OpenBackend(path, false, WithBackendLogger(idx.logger))
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", path, err)
	}

	index, err := NewIndex(backend, WithLogger(idx.logger))
	if err != nil {
		backend.Close()
		return nil, err
	}
	index.ownsDB = true
	return index, nil
}

func (i *Index) loadDimension() error {
	return i.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(dimensionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			dim, err := storage.UnmarshalDimension(val)
			if err != nil {
				return err
			}
			i.dimension = dim
			return nil
		})
	}, false)
}

// Dimension returns the fixed vector length, or 0 before the first Add.
func (i *Index) Dimension() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.dimension
}

func (i *Index) Close() error {
	if i.ownsDB {
		return i.backend.Close()
	}
	return nil
}

// Add upserts entries, normalizing their vectors before storage.
func (i *Index) Add(ctx context.Context, entries ...*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if i.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	dimension := i.dimension
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
	}

	for start := 0; start < len(entries); start += writeChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+writeChunkSize, len(entries))
		firstWrite := i.dimension == 0 && start == 0
		err := i.backend.WithTx(func(tx *badger.Txn) error {
			if firstWrite {
				if err := tx.Set([]byte(dimensionKey), storage.MarshalDimension(dimension)); err != nil {
					return err
				}
			}
			for _, entry := range entries[start:end] {
				stored := *entry
				stored.Vector = core.NormalizeVector(entry.Vector)
				if err := tx.Set(makeEntryKey(entry.ID), storage.MarshalEntry(&stored)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
		if firstWrite {
			i.dimension = dimension
		}
	}

	i.logger.Debug("added entries", "count", len(entries))
	return nil
}

// Query performs a full scan and returns the topK most similar entries.
// Ties are broken by entry id so results are deterministic.
func (i *Index) Query(ctx context.Context, vector []float32, topK int) ([]*core.SearchResult, error) {
	if err := storage.CheckQuery(vector, topK, i.Dimension()); err != nil {
		return nil, err
	}
	if i.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	query := core.NormalizeVector(vector)
	results := make([]*core.SearchResult, 0)

	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry *core.IndexEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, &core.SearchResult{
				Entry: entry,
				Score: core.DotProduct(query, entry.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.Entry.ID, b.Entry.ID)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get returns the entry stored under id.
func (i *Index) Get(ctx context.Context, id string) (*core.IndexEntry, error) {
	var entry *core.IndexEntry
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntryKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = storage.UnmarshalEntry(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	if i.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	count := 0
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Scan pages through entries in id order. Each page is read in its own
// transaction, so fn may write to the index.
func (i *Index) Scan(ctx context.Context, batchSize int, fn func([]*core.IndexEntry) error) error {
	if batchSize <= 0 {
		return storage.ErrInvalidQuery
	}

	seek := []byte(entryPrefix)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := make([]*core.IndexEntry, 0, batchSize)
		var lastKey []byte
		err := i.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(entryPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Seek(seek); iter.Valid() && len(batch) < batchSize; iter.Next() {
				item := iter.Item()
				var entry *core.IndexEntry
				err := item.Value(func(val []byte) error {
					var err error
					entry, err = storage.UnmarshalEntry(val)
					return err
				})
				if err != nil {
					return fmt.Errorf("entry %s: %w", entryIDFromKey(item.Key()), err)
				}
				batch = append(batch, entry)
				lastKey = item.KeyCopy(nil)
			}
			return nil
		}, false)
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		seek = nextKey(lastKey)
	}
}
