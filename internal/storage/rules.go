package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sagelearn/sagacity/internal/model"
)

// GetRules loads one rules record by id.
func (db *DB) GetRules(ctx context.Context, id uuid.UUID) (model.Rules, error) {
	row := db.pool.QueryRow(ctx, `
		SELECT id, criterion_name, threshold, fields, created_at
		FROM rules
		WHERE id = $1`,
		id,
	)
	return scanRules(row)
}

// GetOrCreateRules resolves a rules record with dedup semantics: if a
// record with the same content hash (criterion, threshold, fields with
// list values treated as order-independent) already exists, it is
// returned; otherwise a new record is inserted. Rules are immutable once
// created — "changing" rules means creating a new record and re-pointing
// the binding.
func (db *DB) GetOrCreateRules(ctx context.Context, rules model.Rules) (model.Rules, error) {
	contentHash := rules.ContentHash()

	fields, err := json.Marshal(rules.Fields)
	if err != nil {
		return model.Rules{}, fmt.Errorf("storage: encode rule fields: %w", err)
	}

	if rules.ID == uuid.Nil {
		rules.ID = uuid.New()
	}

	// The unique index on content_hash makes concurrent creates converge
	// on a single row; DO NOTHING plus the follow-up read handles the
	// race without an advisory lock.
	_, err = db.pool.Exec(ctx, `
		INSERT INTO rules (id, criterion_name, threshold, fields, content_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_hash) DO NOTHING`,
		rules.ID, rules.CriterionName, rules.Threshold, fields, contentHash,
	)
	if err != nil {
		return model.Rules{}, fmt.Errorf("storage: insert rules: %w", err)
	}

	row := db.pool.QueryRow(ctx, `
		SELECT id, criterion_name, threshold, fields, created_at
		FROM rules
		WHERE content_hash = $1`,
		contentHash,
	)
	stored, err := scanRules(row)
	if err != nil {
		return model.Rules{}, fmt.Errorf("storage: reread rules after insert: %w", err)
	}
	return stored, nil
}

func scanRules(row pgx.Row) (model.Rules, error) {
	var r model.Rules
	var fields []byte
	err := row.Scan(&r.ID, &r.CriterionName, &r.Threshold, &fields, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Rules{}, ErrNotFound
	}
	if err != nil {
		return model.Rules{}, fmt.Errorf("storage: scan rules: %w", err)
	}
	if err := json.Unmarshal(fields, &r.Fields); err != nil {
		return model.Rules{}, fmt.Errorf("storage: decode rule fields: %w", err)
	}
	return r, nil
}
