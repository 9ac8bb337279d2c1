package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagelearn/sagacity/internal/model"
)

// Append writes one rejection record. The table is append-only: there is
// no update or delete path, by design — it is the moderation audit trail.
func (db *DB) Append(ctx context.Context, rejected model.RejectedAnswer) error {
	if rejected.ID == uuid.Nil {
		rejected.ID = uuid.New()
	}
	reasons, err := json.Marshal(rejected.Reasons)
	if err != nil {
		return fmt.Errorf("storage: encode rejection reasons: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO rejected_answers (id, quality_id, rationale, reasons)
		VALUES ($1, $2, $3, $4)`,
		rejected.ID, rejected.QualityID, rejected.Rationale, reasons,
	)
	if err != nil {
		return fmt.Errorf("storage: append rejection: %w", err)
	}
	return nil
}

// ListRejected returns rejection records for a profile, newest first,
// bounded by limit and offset for moderation paging.
func (db *DB) ListRejected(ctx context.Context, qualityID uuid.UUID, limit, offset int) ([]model.RejectedAnswer, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, quality_id, rationale, reasons, created_at
		FROM rejected_answers
		WHERE quality_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		qualityID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: query rejections: %w", err)
	}
	defer rows.Close()

	var out []model.RejectedAnswer
	for rows.Next() {
		var r model.RejectedAnswer
		var reasons []byte
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.QualityID, &r.Rationale, &reasons, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan rejection: %w", err)
		}
		if err := json.Unmarshal(reasons, &r.Reasons); err != nil {
			return nil, fmt.Errorf("storage: decode rejection reasons: %w", err)
		}
		r.CreatedAt = createdAt
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate rejections: %w", err)
	}
	return out, nil
}
