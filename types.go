package sagacity

import (
	"time"

	"github.com/google/uuid"
)

// Scope is the breadth at which a quality profile applies. Narrower
// scopes win when both a scoped and a global profile exist.
type Scope string

const (
	ScopeAssignment Scope = "assignment"
	ScopeGroup      Scope = "group"
	ScopeTeacher    Scope = "teacher"
	ScopeGlobal     Scope = "global"
)

// UseType distinguishes the two profile roles: validation gates
// submissions, evaluation scores accepted rationales for selection.
type UseType string

const (
	UseValidation UseType = "validation"
	UseEvaluation UseType = "evaluation"
)

// CriterionScore is one criterion's contribution to a quality result.
type CriterionScore struct {
	Name      string         `json:"name"`
	Version   int            `json:"version"`
	Weight    float64        `json:"weight"`
	Score     float64        `json:"score"`
	Threshold float64        `json:"threshold"`
	Passed    bool           `json:"passed"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// QualityScore is the aggregate quality of one rationale under the
// evaluation profile.
type QualityScore struct {
	Rationale string `json:"rationale"`

	// Score is the weighted mean of criterion scores. Nil means the
	// profile had no active criteria, not a score of zero.
	Score    *float64         `json:"score"`
	Criteria []CriterionScore `json:"criteria"`
}

// RejectionReason records one failing criterion of a rejected rationale.
type RejectionReason struct {
	Criterion string  `json:"criterion"`
	Version   int     `json:"version"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}

// ValidationOutcome is the result of gating one rationale.
type ValidationOutcome struct {
	// Accepted is true only when every active criterion met its
	// threshold. The weighted Score never decides acceptance.
	Accepted bool              `json:"accepted"`
	Score    *float64          `json:"score"`
	Criteria []CriterionScore  `json:"criteria"`
	Reasons  []RejectionReason `json:"reasons,omitempty"`
}

// Rationale is a stored student explanation offered for peer review.
type Rationale struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	Contributor string    `json:"contributor"`

	// Choice is the answer choice this rationale argues for.
	Choice  string `json:"choice"`
	Correct bool   `json:"correct"`

	// SecondChoice is the revised answer after peer review, when known.
	SecondChoice  string `json:"second_choice,omitempty"`
	SecondCorrect bool   `json:"second_correct,omitempty"`

	TimesShown  int `json:"times_shown,omitempty"`
	TimesChosen int `json:"times_chosen,omitempty"`

	ShowToOthers bool `json:"show_to_others"`
}

// Choice is one answer choice of the question under review.
type Choice struct {
	Label   string `json:"label"`
	Correct bool   `json:"correct"`
}

// SelectionRequest asks for a review set for one student.
type SelectionRequest struct {
	Scope         Scope       `json:"scope"`
	Viewer        string      `json:"viewer"`
	ViewerChoice  string      `json:"viewer_choice"`
	ViewerCorrect bool        `json:"viewer_correct"`
	Choices       []Choice    `json:"choices"`
	Candidates    []Rationale `json:"candidates"`
	Excluded      []string    `json:"excluded,omitempty"`
	PerChoice     int         `json:"per_choice"`
	Seed          int64       `json:"seed"`
}

// SelectionGroup pairs a shown answer choice with its sampled rationales.
type SelectionGroup struct {
	Label      string      `json:"label"`
	Correct    bool        `json:"correct"`
	Rationales []Rationale `json:"rationales"`
}

// Selection is a completed review set.
type Selection struct {
	Groups []SelectionGroup `json:"groups"`

	// SelfOption is the sentinel choice appended after every sampled
	// rationale, letting the student keep their own reasoning.
	SelfOption string `json:"self_option"`
}

// RuleSet is the input for binding a criterion to a profile. Rules are
// deduplicated by content: binding identical rules twice yields one
// stored record.
type RuleSet struct {
	Criterion string         `json:"criterion"`
	Threshold float64        `json:"threshold"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// StoredRules is a persisted, deduplicated rule set as seen by a
// host-provided RulesStore.
type StoredRules struct {
	ID        uuid.UUID      `json:"id"`
	Criterion string         `json:"criterion"`
	Threshold float64        `json:"threshold"`
	Fields    map[string]any `json:"fields,omitempty"`

	// ContentHash is the canonical dedup key, computed by the engine
	// before the store is called. Stores must treat it as opaque.
	ContentHash string `json:"content_hash"`

	CreatedAt time.Time `json:"created_at"`
}

// Profile is a quality profile as seen by a host-provided ProfileStore.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Scope     Scope     `json:"scope"`
	UseType   UseType   `json:"use_type"`
	Criteria  []Binding `json:"criteria,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Binding is a criterion attached to a quality profile.
type Binding struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Criterion string    `json:"criterion"`
	Version   int       `json:"version"`
	RulesID   uuid.UUID `json:"rules_id"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// CriterionInfo describes one registered scoring algorithm.
type CriterionInfo struct {
	Name            string   `json:"name"`
	Version         int      `json:"version"`
	Beta            bool     `json:"beta"`
	Scopes          []Scope  `json:"scopes"`
	RuleFields      []string `json:"rule_fields"`
	Description     string   `json:"description"`
	RequiresContext bool     `json:"requires_context"`
}

// RejectedRationale is one append-only audit record of a failed
// validation.
type RejectedRationale struct {
	ID        uuid.UUID         `json:"id"`
	ProfileID uuid.UUID         `json:"profile_id"`
	Rationale string            `json:"rationale"`
	Reasons   []RejectionReason `json:"reasons"`
	CreatedAt time.Time         `json:"created_at"`
}
