package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Get reads one evaluation cache entry. A miss is (nil, false, nil);
// store errors surface so the cache can fail closed.
func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := db.pool.QueryRow(ctx,
		`SELECT value FROM eval_cache WHERE key = $1`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: cache get: %w", err)
	}
	return value, true, nil
}

// Put stores one evaluation cache entry. Values are deterministic per
// key, so concurrent writers racing on the same key may safely
// last-writer-win.
func (db *DB) Put(ctx context.Context, key string, value []byte) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO eval_cache (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storage: cache put: %w", err)
	}
	return nil
}

// Delete removes one evaluation cache entry. Deleting a missing key is
// not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM eval_cache WHERE key = $1`, key); err != nil {
		return fmt.Errorf("storage: cache delete: %w", err)
	}
	return nil
}
