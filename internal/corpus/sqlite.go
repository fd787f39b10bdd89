package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

// SQLiteStore is a DocumentStore backed by a SQLite database file.
// The pure-Go driver keeps the binary CGO-free.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (or creates, when create is true) the corpus database
// at path and verifies the schema.
func OpenSQLite(path string, create bool) (*SQLiteStore, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, geoerrors.StoreUnavailable(path, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, geoerrors.StoreUnavailable(path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, geoerrors.StoreUnavailable(path, err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, geoerrors.StoreUnavailable(path, fmt.Errorf("pragma failed: %w", err))
		}
	}

	s := &SQLiteStore{path: path, db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS collections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS chunks (
	collection_id INTEGER NOT NULL REFERENCES collections(id),
	ord INTEGER NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (collection_id, ord)
);`
	if _, err := s.db.Exec(schema); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrCodeStoreCorrupt, "failed to ensure schema")
	}
	return nil
}

// GetCollection implements DocumentStore.
func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (Collection, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM collections WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, geoerrors.CollectionNotFound(name)
	}
	if err != nil {
		return nil, geoerrors.StoreUnavailable(s.path, err)
	}

	return &sqliteCollection{store: s, id: id, name: name}, nil
}

// ListCollections implements DocumentStore.
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, geoerrors.StoreUnavailable(s.path, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, geoerrors.StoreUnavailable(s.path, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CreateCollection creates a collection, returning a handle. Existing
// collections are returned as-is.
func (s *SQLiteStore) CreateCollection(ctx context.Context, name string) (Collection, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (name) VALUES (?)", name)
	if err != nil {
		return nil, geoerrors.StoreUnavailable(s.path, err)
	}
	return s.GetCollection(ctx, name)
}

// AddChunks appends chunks to a collection in ingest order.
func (s *SQLiteStore) AddChunks(ctx context.Context, name string, chunks []Chunk) error {
	coll, err := s.GetCollection(ctx, name)
	if err != nil {
		return err
	}
	sc := coll.(*sqliteCollection)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return geoerrors.StoreUnavailable(s.path, err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(ord)+1, 0) FROM chunks WHERE collection_id = ?",
		sc.id).Scan(&next); err != nil {
		return geoerrors.StoreUnavailable(s.path, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (collection_id, ord, content, metadata) VALUES (?, ?, ?, ?)")
	if err != nil {
		return geoerrors.StoreUnavailable(s.path, err)
	}
	defer stmt.Close()

	for i, ch := range chunks {
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrCodeInternal, "failed to encode chunk metadata")
		}
		if _, err := stmt.ExecContext(ctx, sc.id, next+i, ch.Content, string(meta)); err != nil {
			return geoerrors.StoreUnavailable(s.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return geoerrors.StoreUnavailable(s.path, err)
	}
	return nil
}

// Close implements DocumentStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteCollection struct {
	store *SQLiteStore
	id    int64
	name  string
}

func (c *sqliteCollection) Name() string {
	return c.name
}

func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE collection_id = ?", c.id).Scan(&n)
	if err != nil {
		return 0, geoerrors.StoreUnavailable(c.store.path, err)
	}
	return n, nil
}

func (c *sqliteCollection) GetAll(ctx context.Context) ([]Chunk, error) {
	rows, err := c.store.db.QueryContext(ctx,
		"SELECT content, metadata FROM chunks WHERE collection_id = ? ORDER BY ord",
		c.id)
	if err != nil {
		return nil, geoerrors.StoreUnavailable(c.store.path, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var content, metaJSON string
		if err := rows.Scan(&content, &metaJSON); err != nil {
			return nil, geoerrors.StoreUnavailable(c.store.path, err)
		}

		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrCodeStoreCorrupt,
				"failed to decode chunk metadata")
		}

		chunks = append(chunks, Chunk{Content: content, Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, geoerrors.StoreUnavailable(c.store.path, err)
	}

	return chunks, nil
}
