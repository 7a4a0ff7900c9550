// Package catalog records the collections held by a local index directory.
//
// The catalog is the primary database file of an index directory. Each
// collection's segments live in a sibling directory named by the
// collection id:
//
//	<index path>/index.sqlite3
//	<index path>/<collection id>/...
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the name of the catalog database inside an index directory.
const FileName = "index.sqlite3"

type Collection struct {
	ID        string
	Name      string
	Dimension int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Catalog struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

type Option func(*Catalog) error

func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) error {
		c.logger = logger
		return nil
	}
}

// Open opens or creates the catalog inside dir.
func Open(dir string, opts ...Option) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)

	// Rollback journal keeps the catalog a single file between runs.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	c := &Catalog{
		db:     db,
		path:   dbPath,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			db.Close()
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "catalog")

	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			dimension  INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// SegmentDir returns the directory holding the segments of collection id.
func (c *Catalog) SegmentDir(id string) string {
	return filepath.Join(filepath.Dir(c.path), id)
}

const selectCollection = `SELECT id, name, dimension, created_at, updated_at FROM collections`

func scanCollection(row interface{ Scan(...any) error }) (*Collection, error) {
	var col Collection
	var created, updated string
	if err := row.Scan(&col.ID, &col.Name, &col.Dimension, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if col.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if col.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &col, nil
}

// Lookup finds a collection by name.
func (c *Catalog) Lookup(ctx context.Context, name string) (*Collection, error) {
	col, err := scanCollection(c.db.QueryRowContext(ctx, selectCollection+` WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return col, err
}

// Get finds a collection by id.
func (c *Catalog) Get(ctx context.Context, id string) (*Collection, error) {
	col, err := scanCollection(c.db.QueryRowContext(ctx, selectCollection+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return col, err
}

// List returns all collections ordered by name.
func (c *Catalog) List(ctx context.Context) ([]*Collection, error) {
	rows, err := c.db.QueryContext(ctx, selectCollection+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// Ensure returns the collection called name. When it does not exist it is
// created, with id if non-empty or a fresh uuid otherwise. A non-empty id
// that disagrees with an existing collection of that name is an error.
func (c *Catalog) Ensure(ctx context.Context, name, id string) (*Collection, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
		}
	}

	existing, err := c.Lookup(ctx, name)
	switch {
	case err == nil:
		if id != "" && existing.ID != id {
			return nil, fmt.Errorf("%w: %s is %s, not %s", ErrNameConflict, name, existing.ID, id)
		}
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO collections (id, name, dimension, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		id, name, stamp, stamp)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}

	c.logger.Info("created collection", "name", name, "id", id)
	return &Collection{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// GetOrCreate returns the collection called name, creating it with a new id
// when absent.
func (c *Catalog) GetOrCreate(ctx context.Context, name string) (*Collection, error) {
	return c.Ensure(ctx, name, "")
}

// SetDimension records the vector dimension of collection id.
func (c *Catalog) SetDimension(ctx context.Context, id string, dimension int) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE collections SET dimension = ?, updated_at = ? WHERE id = ?`,
		dimension, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
