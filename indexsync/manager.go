package indexsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/finwhiz/blob"
	"github.com/poiesic/finwhiz/storage/catalog"
)

// DefaultWorkers is the default number of concurrent transfers.
const DefaultWorkers = 4

// CollectionResolver determines the collection id from a freshly downloaded
// primary database in dir.
type CollectionResolver func(ctx context.Context, dir string) (string, error)

// Stats summarizes a sync operation.
type Stats struct {
	Skipped bool // local copy already present
	Files   int
	Bytes   int64
}

type Manager struct {
	store        blob.Store
	localPath    string
	prefix       string
	collectionID string
	resolver     CollectionResolver
	workers      int
	logger       *slog.Logger
}

type Option func(*Manager) error

// WithCollectionID fixes the collection whose segments are downloaded.
func WithCollectionID(id string) Option {
	return func(m *Manager) error {
		m.collectionID = id
		return nil
	}
}

// WithCollectionResolver is consulted when no collection id is configured.
func WithCollectionResolver(resolver CollectionResolver) Option {
	return func(m *Manager) error {
		m.resolver = resolver
		return nil
	}
}

func WithWorkers(n int) Option {
	return func(m *Manager) error {
		if n < 1 {
			return ErrInvalidWorkers
		}
		m.workers = n
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		m.logger = logger
		return nil
	}
}

func NewManager(store blob.Store, localPath, prefix string, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if localPath == "" {
		return nil, ErrPathRequired
	}

	m := &Manager{
		store:     store,
		localPath: localPath,
		prefix:    strings.Trim(prefix, "/"),
		workers:   DefaultWorkers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.logger = m.logger.With("component", "indexsync", "path", localPath, "prefix", m.prefix)
	return m, nil
}

// CatalogResolver resolves the collection id by looking name up in the
// downloaded catalog.
func CatalogResolver(name string) CollectionResolver {
	return func(ctx context.Context, dir string) (string, error) {
		cat, err := catalog.Open(dir)
		if err != nil {
			return "", err
		}
		defer cat.Close()

		col, err := cat.Lookup(ctx, name)
		if err != nil {
			return "", err
		}
		return col.ID, nil
	}
}

// LocalPresent reports whether the local index directory exists and holds
// at least one entry.
func (m *Manager) LocalPresent() (bool, error) {
	entries, err := os.ReadDir(m.localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// EnsureLocal downloads the remote copy when the local directory is missing
// or empty. It first fetches every object under the prefix whose base name
// is the primary database file, then every object of the collection.
func (m *Manager) EnsureLocal(ctx context.Context) (Stats, error) {
	present, err := m.LocalPresent()
	if err != nil {
		return Stats{}, err
	}
	if present {
		m.logger.Debug("local index present, skipping download")
		return Stats{Skipped: true}, nil
	}

	m.logger.Info("local index missing, downloading from backup")
	if err := os.MkdirAll(m.localPath, 0755); err != nil {
		return Stats{}, fmt.Errorf("creating index directory: %w", err)
	}

	objects, err := m.store.List(ctx, m.listPrefix(""))
	if err != nil {
		return Stats{}, fmt.Errorf("listing backup: %w", err)
	}
	var databases []blob.ObjectInfo
	for _, obj := range objects {
		if obj.Name == catalog.FileName || strings.HasSuffix(obj.Name, "/"+catalog.FileName) {
			databases = append(databases, obj)
		}
	}

	stats, err := m.download(ctx, m.prefix, databases)
	if err != nil {
		return stats, err
	}

	collectionID := m.collectionID
	if collectionID == "" && m.resolver != nil && len(databases) > 0 {
		collectionID, err = m.resolver(ctx, m.localPath)
		if err != nil {
			return stats, fmt.Errorf("%w: %w", ErrNoCollection, err)
		}
	}
	if collectionID == "" {
		m.logger.Warn("no collection id, segment files not downloaded", "databases", len(databases))
		return stats, nil
	}

	segmentPrefix := blob.Join(m.prefix, collectionID)
	segments, err := m.store.List(ctx, m.listPrefix(collectionID))
	if err != nil {
		return stats, fmt.Errorf("listing collection %s: %w", collectionID, err)
	}
	segStats, err := m.download(ctx, segmentPrefix, segments)
	stats.Files += segStats.Files
	stats.Bytes += segStats.Bytes
	if err != nil {
		return stats, err
	}

	m.logger.Info("downloaded index", "collection", collectionID, "files", stats.Files, "bytes", stats.Bytes)
	return stats, nil
}

// PersistRemote uploads every file below the local directory to
// <prefix>/<relative path>.
func (m *Manager) PersistRemote(ctx context.Context) (Stats, error) {
	var files []string
	err := filepath.WalkDir(m.localPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("walking %s: %w", m.localPath, err)
	}

	var uploaded atomic.Int64
	var size atomic.Int64
	err = m.run(ctx, len(files), func(i int) error {
		path := files[i]
		rel, err := filepath.Rel(m.localPath, path)
		if err != nil {
			return err
		}
		n, err := m.upload(ctx, path, blob.Join(m.prefix, filepath.ToSlash(rel)))
		if err != nil {
			return err
		}
		uploaded.Add(1)
		size.Add(n)
		return nil
	})
	stats := Stats{Files: int(uploaded.Load()), Bytes: size.Load()}
	if err != nil {
		return stats, err
	}

	m.logger.Info("persisted index", "files", stats.Files, "bytes", stats.Bytes)
	return stats, nil
}

// listPrefix returns the listing prefix for a sub-directory of the backup.
func (m *Manager) listPrefix(sub string) string {
	p := blob.Join(m.prefix, sub)
	if p == "" {
		return ""
	}
	return p + "/"
}

func (m *Manager) download(ctx context.Context, base string, objects []blob.ObjectInfo) (Stats, error) {
	var files atomic.Int64
	var size atomic.Int64
	err := m.run(ctx, len(objects), func(i int) error {
		obj := objects[i]
		rel, ok := blob.Rel(base, obj.Name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsafeName, obj.Name)
		}
		target, err := m.localTarget(base, rel)
		if err != nil {
			return err
		}
		n, err := m.fetch(ctx, obj.Name, target)
		if err != nil {
			return err
		}
		files.Add(1)
		size.Add(n)
		return nil
	})
	return Stats{Files: int(files.Load()), Bytes: size.Load()}, err
}

// localTarget maps a name relative to base onto the local directory. Names
// relative to a collection prefix land in the collection's directory.
func (m *Manager) localTarget(base, rel string) (string, error) {
	relBase, _ := blob.Rel(m.prefix, base)
	if base == m.prefix {
		relBase = ""
	}
	full := filepath.FromSlash(blob.Join(relBase, rel))
	if !filepath.IsLocal(full) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeName, rel)
	}
	return filepath.Join(m.localPath, full), nil
}

func (m *Manager) fetch(ctx context.Context, name, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, err
	}
	rc, err := m.store.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	f, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("downloading %s: %w", name, err)
	}
	m.logger.Debug("downloaded object", "name", name, "bytes", n)
	return n, nil
}

func (m *Manager) upload(ctx context.Context, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := m.store.Put(ctx, name, f, info.Size()); err != nil {
		return 0, err
	}
	m.logger.Debug("uploaded file", "name", name, "bytes", info.Size())
	return info.Size(), nil
}

// run executes task(0..n-1) on a worker pool and returns the first error.
// Tasks not yet started when an error occurs are skipped.
func (m *Manager) run(ctx context.Context, n int, task func(i int) error) error {
	if n == 0 {
		return nil
	}

	pool, err := ants.NewPool(min(m.workers, n))
	if err != nil {
		return err
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := task(i); err != nil {
				fail(err)
			}
		}); err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
