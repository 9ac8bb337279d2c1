package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sagelearn/sagacity/internal/model"
)

// CreateProfile inserts a quality profile. Exactly one global profile
// may exist per use type; the partial unique index enforces it.
func (db *DB) CreateProfile(ctx context.Context, q model.Quality) (model.Quality, error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	row := db.pool.QueryRow(ctx, `
		INSERT INTO quality_profiles (id, scope, use_type)
		VALUES ($1, $2, $3)
		RETURNING id, scope, use_type, created_at`,
		q.ID, string(q.Scope), string(q.UseType),
	)
	var out model.Quality
	if err := row.Scan(&out.ID, &out.Scope, &out.UseType, &out.CreatedAt); err != nil {
		return model.Quality{}, fmt.Errorf("storage: insert profile: %w", err)
	}
	return out, nil
}

// GetProfile loads a profile and its bindings by id.
func (db *DB) GetProfile(ctx context.Context, id uuid.UUID) (model.Quality, error) {
	row := db.pool.QueryRow(ctx, `
		SELECT id, scope, use_type, created_at
		FROM quality_profiles
		WHERE id = $1`,
		id,
	)
	var q model.Quality
	err := row.Scan(&q.ID, &q.Scope, &q.UseType, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Quality{}, ErrNotFound
	}
	if err != nil {
		return model.Quality{}, fmt.Errorf("storage: scan profile: %w", err)
	}
	if q.Criteria, err = db.loadBindings(ctx, q.ID); err != nil {
		return model.Quality{}, err
	}
	return q, nil
}

// ProfileForScope resolves the profile for a scope and use type. A
// scoped profile is an optional override; when none exists the global
// profile is returned. Missing global profile is ErrNotFound — the
// global profile per use type is mandatory configuration.
func (db *DB) ProfileForScope(ctx context.Context, scope model.Scope, useType model.UseType) (model.Quality, error) {
	row := db.pool.QueryRow(ctx, `
		SELECT id, scope, use_type, created_at
		FROM quality_profiles
		WHERE use_type = $1 AND scope IN ($2, 'global')
		ORDER BY (scope = 'global') ASC
		LIMIT 1`,
		string(useType), string(scope),
	)
	var q model.Quality
	err := row.Scan(&q.ID, &q.Scope, &q.UseType, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Quality{}, fmt.Errorf("storage: no %s profile for scope %q: %w", useType, scope, ErrNotFound)
	}
	if err != nil {
		return model.Quality{}, fmt.Errorf("storage: scan profile: %w", err)
	}
	if q.Criteria, err = db.loadBindings(ctx, q.ID); err != nil {
		return model.Quality{}, err
	}
	return q, nil
}

// PutBinding inserts or replaces the binding for its criterion name.
// A profile has at most one binding per criterion: binding a criterion
// that is already bound replaces the earlier version/rules/weight. The
// previous binding is returned for audit, nil when the binding is new.
func (db *DB) PutBinding(ctx context.Context, binding model.UsesCriterion) (model.UsesCriterion, *model.UsesCriterion, error) {
	var previous *model.UsesCriterion
	row := db.pool.QueryRow(ctx, `
		SELECT id, quality_id, criterion_name, criterion_version, rules_id, weight, created_at
		FROM profile_criteria
		WHERE quality_id = $1 AND criterion_name = $2`,
		binding.QualityID, binding.CriterionName,
	)
	prev, err := scanBinding(row)
	switch {
	case err == nil:
		previous = &prev
	case !errors.Is(err, ErrNotFound):
		return model.UsesCriterion{}, nil, err
	}

	if binding.ID == uuid.Nil {
		binding.ID = uuid.New()
	}
	row = db.pool.QueryRow(ctx, `
		INSERT INTO profile_criteria (id, quality_id, criterion_name, criterion_version, rules_id, weight)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (quality_id, criterion_name)
		DO UPDATE SET
			criterion_version = EXCLUDED.criterion_version,
			rules_id          = EXCLUDED.rules_id,
			weight            = EXCLUDED.weight
		RETURNING id, quality_id, criterion_name, criterion_version, rules_id, weight, created_at`,
		binding.ID, binding.QualityID, binding.CriterionName,
		binding.CriterionVersion, binding.RulesID, binding.Weight,
	)
	stored, err := scanBinding(row)
	if err != nil {
		return model.UsesCriterion{}, nil, fmt.Errorf("storage: upsert binding: %w", err)
	}
	return stored, previous, nil
}

// DeleteBinding removes and returns the named binding.
func (db *DB) DeleteBinding(ctx context.Context, qualityID uuid.UUID, criterionName string) (model.UsesCriterion, error) {
	row := db.pool.QueryRow(ctx, `
		DELETE FROM profile_criteria
		WHERE quality_id = $1 AND criterion_name = $2
		RETURNING id, quality_id, criterion_name, criterion_version, rules_id, weight, created_at`,
		qualityID, criterionName,
	)
	removed, err := scanBinding(row)
	if err != nil {
		return model.UsesCriterion{}, err
	}
	return removed, nil
}

func (db *DB) loadBindings(ctx context.Context, qualityID uuid.UUID) ([]model.UsesCriterion, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, quality_id, criterion_name, criterion_version, rules_id, weight, created_at
		FROM profile_criteria
		WHERE quality_id = $1
		ORDER BY created_at, criterion_name`,
		qualityID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: query bindings: %w", err)
	}
	defer rows.Close()

	var bindings []model.UsesCriterion
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate bindings: %w", err)
	}
	return bindings, nil
}

func scanBinding(row pgx.Row) (model.UsesCriterion, error) {
	var b model.UsesCriterion
	err := row.Scan(&b.ID, &b.QualityID, &b.CriterionName, &b.CriterionVersion, &b.RulesID, &b.Weight, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.UsesCriterion{}, ErrNotFound
	}
	if err != nil {
		return model.UsesCriterion{}, fmt.Errorf("storage: scan binding: %w", err)
	}
	return b, nil
}
