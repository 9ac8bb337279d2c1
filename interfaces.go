package sagacity

import (
	"context"

	"github.com/google/uuid"
)

// RulesStore persists deduplicated rule sets. When provided via
// WithRulesStore, replaces the configured backend. GetOrCreateRules
// must dedup by ContentHash: a record with the same hash already in the
// store is returned unchanged instead of inserting a duplicate.
// GetRules returns ErrNotFound for unknown ids.
type RulesStore interface {
	GetRules(ctx context.Context, id uuid.UUID) (StoredRules, error)
	GetOrCreateRules(ctx context.Context, rules StoredRules) (StoredRules, error)
}

// ProfileStore persists quality profiles and their criterion bindings.
// When provided via WithProfileStore, replaces the configured backend.
// ProfileForScope falls back to the global profile of the same use type
// when no scoped profile exists, and returns ErrNotFound when neither
// does. PutBinding replaces any binding with the same criterion name
// and returns the previous one (nil if new).
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile Profile) (Profile, error)
	GetProfile(ctx context.Context, id uuid.UUID) (Profile, error)
	ProfileForScope(ctx context.Context, scope Scope, useType UseType) (Profile, error)
	PutBinding(ctx context.Context, binding Binding) (Binding, *Binding, error)
	DeleteBinding(ctx context.Context, profileID uuid.UUID, criterion string) (Binding, error)
}

// CacheStore persists evaluation results keyed by content hash. When
// provided via WithCacheStore, replaces the configured backend
// (memory, sqlite, or postgres). Entries never expire; they are only
// invalidated explicitly.
type CacheStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// RejectionSink receives the append-only audit record for every
// rationale that fails validation. When provided via WithRejectionSink,
// replaces the configured store. Implementations must never mutate or
// drop records on success.
type RejectionSink interface {
	Append(ctx context.Context, rejected RejectedRationale) error
}
