// Package memstore is an in-memory implementation of the engine's store
// interfaces (rules, profiles, rejection log, evaluation cache). It
// backs engines that run without persistence and the unit tests of the
// packages above it. Safe for concurrent use.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagelearn/sagacity/internal/model"
	"github.com/sagelearn/sagacity/internal/storage"
)

// Store holds all entities in maps guarded by one mutex.
type Store struct {
	mu          sync.RWMutex
	rulesByID   map[uuid.UUID]model.Rules
	rulesByHash map[string]uuid.UUID
	profiles    map[uuid.UUID]*model.Quality
	cache       map[string][]byte
	rejected    []model.RejectedAnswer
}

// New creates an empty store.
func New() *Store {
	return &Store{
		rulesByID:   make(map[uuid.UUID]model.Rules),
		rulesByHash: make(map[string]uuid.UUID),
		profiles:    make(map[uuid.UUID]*model.Quality),
		cache:       make(map[string][]byte),
	}
}

// GetRules loads one rules record by id.
func (s *Store) GetRules(_ context.Context, id uuid.UUID) (model.Rules, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rulesByID[id]
	if !ok {
		return model.Rules{}, storage.ErrNotFound
	}
	return r, nil
}

// GetOrCreateRules resolves a rules record by content hash, inserting
// only when no identical record exists.
func (s *Store) GetOrCreateRules(_ context.Context, rules model.Rules) (model.Rules, error) {
	contentHash := rules.ContentHash()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.rulesByHash[contentHash]; ok {
		return s.rulesByID[id], nil
	}
	if rules.ID == uuid.Nil {
		rules.ID = uuid.New()
	}
	rules.CreatedAt = time.Now()
	s.rulesByID[rules.ID] = rules
	s.rulesByHash[contentHash] = rules.ID
	return rules, nil
}

// CreateProfile inserts a quality profile.
func (s *Store) CreateProfile(_ context.Context, q model.Quality) (model.Quality, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.CreatedAt = time.Now()
	stored := q
	s.profiles[q.ID] = &stored
	return q, nil
}

// GetProfile loads a profile and its bindings by id.
func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (model.Quality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.profiles[id]
	if !ok {
		return model.Quality{}, storage.ErrNotFound
	}
	return cloneProfile(q), nil
}

// ProfileForScope resolves a scoped profile, falling back to global.
func (s *Store) ProfileForScope(_ context.Context, scope model.Scope, useType model.UseType) (model.Quality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var global *model.Quality
	for _, q := range s.profiles {
		if q.UseType != useType {
			continue
		}
		if q.Scope == scope {
			return cloneProfile(q), nil
		}
		if q.Scope == model.ScopeGlobal {
			global = q
		}
	}
	if global == nil {
		return model.Quality{}, fmt.Errorf("no %s profile for scope %q: %w", useType, scope, storage.ErrNotFound)
	}
	return cloneProfile(global), nil
}

// PutBinding inserts or replaces the binding for its criterion name,
// returning the previous binding for audit (nil when new).
func (s *Store) PutBinding(_ context.Context, binding model.UsesCriterion) (model.UsesCriterion, *model.UsesCriterion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.profiles[binding.QualityID]
	if !ok {
		return model.UsesCriterion{}, nil, storage.ErrNotFound
	}
	if binding.ID == uuid.Nil {
		binding.ID = uuid.New()
	}
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = time.Now()
	}
	for i, existing := range q.Criteria {
		if existing.CriterionName == binding.CriterionName {
			previous := existing
			binding.CreatedAt = existing.CreatedAt
			q.Criteria[i] = binding
			return binding, &previous, nil
		}
	}
	q.Criteria = append(q.Criteria, binding)
	return binding, nil, nil
}

// DeleteBinding removes and returns the named binding.
func (s *Store) DeleteBinding(_ context.Context, qualityID uuid.UUID, criterionName string) (model.UsesCriterion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.profiles[qualityID]
	if !ok {
		return model.UsesCriterion{}, storage.ErrNotFound
	}
	for i, existing := range q.Criteria {
		if existing.CriterionName == criterionName {
			q.Criteria = append(q.Criteria[:i], q.Criteria[i+1:]...)
			return existing, nil
		}
	}
	return model.UsesCriterion{}, storage.ErrNotFound
}

// Append records one rejection.
func (s *Store) Append(_ context.Context, rejected model.RejectedAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rejected.CreatedAt.IsZero() {
		rejected.CreatedAt = time.Now()
	}
	s.rejected = append(s.rejected, rejected)
	return nil
}

// Rejected returns a copy of the rejection log.
func (s *Store) Rejected() []model.RejectedAnswer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.RejectedAnswer(nil), s.rejected...)
}

// Get reads one cache entry.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok, nil
}

// Put stores one cache entry.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = value
	return nil
}

// Delete removes one cache entry.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
	return nil
}

func cloneProfile(q *model.Quality) model.Quality {
	out := *q
	out.Criteria = append([]model.UsesCriterion(nil), q.Criteria...)
	return out
}
