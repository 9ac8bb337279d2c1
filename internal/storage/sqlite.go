package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // CGo-free SQLite driver
)

// SQLiteCache is an embedded single-file evaluation cache for hosts that
// run without Postgres. SQLite is limited to one open connection to
// avoid "database is locked" errors under concurrent writers.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (and if needed initializes) the cache database at
// path. Use ":memory:" for an ephemeral cache.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite cache at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS eval_cache (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: init sqlite cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Get reads one cache entry; a miss is (nil, false, nil).
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM eval_cache WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: sqlite cache get: %w", err)
	}
	return value, true, nil
}

// Put stores one cache entry, last-writer-wins.
func (c *SQLiteCache) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO eval_cache (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storage: sqlite cache put: %w", err)
	}
	return nil
}

// Delete removes one cache entry. Deleting a missing key is not an error.
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM eval_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: sqlite cache delete: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
