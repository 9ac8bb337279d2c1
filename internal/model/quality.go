// Package model defines the core entities of the rationale quality engine:
// criteria, rules, quality profiles, answers, and rejection records.
// All types are plain structs with no behavior beyond canonical encoding;
// scoring logic lives in internal/criteria and internal/engine.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Scope is the context a quality profile (or criterion) applies to.
type Scope string

const (
	ScopeAssignment Scope = "assignment"
	ScopeGroup      Scope = "group"
	ScopeTeacher    Scope = "teacher"
	ScopeGlobal     Scope = "global"
)

// IsValid reports whether s is a known scope.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeAssignment, ScopeGroup, ScopeTeacher, ScopeGlobal:
		return true
	}
	return false
}

// UseType distinguishes the two ways a quality profile is consumed.
type UseType string

const (
	// UseValidation gates a rationale at submission time (accept/reject).
	UseValidation UseType = "validation"
	// UseEvaluation scores accepted rationales for ranking and selection.
	UseEvaluation UseType = "evaluation"
)

// IsValid reports whether u is a known use type.
func (u UseType) IsValid() bool {
	return u == UseValidation || u == UseEvaluation
}

// Quality is a named scoring profile: an ordered set of weighted
// criterion bindings evaluated together. Exactly one global Quality
// exists per use type; scoped profiles are optional overrides.
type Quality struct {
	ID      uuid.UUID `json:"id"`
	Scope   Scope     `json:"scope"`
	UseType UseType   `json:"use_type"`

	// Criteria is the joined set of bindings, populated by queries.
	// At most one binding exists per criterion name.
	Criteria []UsesCriterion `json:"criteria,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ActiveCriteria returns the bindings with weight > 0.
// A weight of 0 disables a criterion without removing history.
func (q Quality) ActiveCriteria() []UsesCriterion {
	var active []UsesCriterion
	for _, uc := range q.Criteria {
		if uc.Weight > 0 {
			active = append(active, uc)
		}
	}
	return active
}

// UsesCriterion binds one criterion (at a pinned version, with a specific
// rules record) to a quality profile. Rules are referenced by id, not
// embedded, so a rules record may be shared across many bindings.
type UsesCriterion struct {
	ID               uuid.UUID `json:"id"`
	QualityID        uuid.UUID `json:"quality_id"`
	CriterionName    string    `json:"criterion_name"`
	CriterionVersion int       `json:"criterion_version"`
	RulesID          uuid.UUID `json:"rules_id"`
	Weight           float64   `json:"weight"`
	CreatedAt        time.Time `json:"created_at"`
}

// Criterion is the descriptive record of a registered scoring algorithm.
// It is produced by the registry for listing and audit; the algorithm
// itself is a compiled-in implementation, never loaded at runtime.
type Criterion struct {
	Name        string   `json:"name"`
	Version     int      `json:"version"`
	IsBeta      bool     `json:"is_beta"`
	Scopes      []Scope  `json:"applicable_scopes"`
	RuleFields  []string `json:"rule_fields"`
	Description string   `json:"description"`

	// RequiresContext marks criteria that read answer context (choice
	// correctness, shown history) rather than bare text. Their scores
	// depend on more than the rationale text, so they are evaluated
	// directly instead of through the content-addressed cache.
	RequiresContext bool `json:"requires_context"`
}
