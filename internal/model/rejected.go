package model

import (
	"time"

	"github.com/google/uuid"
)

// RejectedAnswer is an append-only audit record of a rationale that
// failed validation. Never mutated or deleted.
type RejectedAnswer struct {
	ID        uuid.UUID         `json:"id"`
	QualityID uuid.UUID         `json:"quality_id"`
	Rationale string            `json:"rationale"`
	Reasons   []RejectionReason `json:"reasons"`
	CreatedAt time.Time         `json:"created_at"`
}

// RejectionReason records one failing criterion as a structured value,
// not a free-form string, so the audit trail stays machine-readable.
type RejectionReason struct {
	Criterion string  `json:"criterion"`
	Version   int     `json:"version"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}
