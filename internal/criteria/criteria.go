// Package criteria implements the closed registry of rationale scoring
// algorithms. Each criterion is a compiled-in implementation of the
// Criterion interface, resolved by name through a Registry built once at
// engine start-up. There is no dynamic registration: the criterion set is
// statically known, so the registry is read-only after construction and
// safe to share across concurrent evaluations.
package criteria

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sagelearn/sagacity/internal/lang"
	"github.com/sagelearn/sagacity/internal/model"
)

var (
	// ErrUnknownCriterion is returned when a name is not in the registry.
	ErrUnknownCriterion = errors.New("criteria: unknown criterion")

	// ErrContextRequired is returned when a criterion that needs answer
	// context (choice correctness, shown history) is given bare text.
	ErrContextRequired = errors.New("criteria: answer context required")

	// ErrInvalidRules is returned when rules values fail validation.
	ErrInvalidRules = errors.New("criteria: invalid rules")
)

// Criterion is one scoring algorithm. Implementations are immutable and
// safe for concurrent use. Scores are in [0, 1].
type Criterion interface {
	// Describe returns the criterion's descriptive record: name, version,
	// declared rule fields, and applicable scopes.
	Describe() model.Criterion

	// ValidateRules checks criterion-specific field bounds. The threshold
	// range is validated by the caller; implementations only check their
	// declared fields.
	ValidateRules(rules model.Rules) error

	// Evaluate scores one answer. The returned result carries the
	// criterion name, version, score, threshold, and detail; the caller
	// fills in the binding weight.
	Evaluate(ctx context.Context, a model.Answer, rules model.Rules) (model.CriterionResult, error)

	// BatchEvaluate scores answers in input order. Implementations that
	// cannot batch more efficiently than a loop fall back to one.
	BatchEvaluate(ctx context.Context, answers []model.Answer, rules model.Rules) ([]model.CriterionResult, error)
}

// Registry resolves criterion names to implementations.
type Registry struct {
	byName map[string]Criterion
}

// NewRegistry builds the registry from the fixed list of compiled-in
// criteria. The likelihood criterion borrows the shared language models;
// everything else is stateless.
func NewRegistry(models *lang.Models) *Registry {
	list := []Criterion{
		&minWords{},
		&minChars{},
		&negWords{},
		&rightAnswer{},
		&selectedAnswer{},
		&likelihood{models: models},
	}
	byName := make(map[string]Criterion, len(list))
	for _, c := range list {
		byName[c.Describe().Name] = c
	}
	return &Registry{byName: byName}
}

// Lookup returns the criterion registered under name, or
// ErrUnknownCriterion.
func (r *Registry) Lookup(name string) (Criterion, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCriterion, name)
	}
	return c, nil
}

// Names returns the registered criterion names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns descriptive records for all registered criteria,
// sorted by name.
func (r *Registry) Describe() []model.Criterion {
	out := make([]model.Criterion, 0, len(r.byName))
	for _, name := range r.Names() {
		out = append(out, r.byName[name].Describe())
	}
	return out
}

// ValidateRules checks the threshold range and delegates field validation
// to the named criterion.
func (r *Registry) ValidateRules(rules model.Rules) error {
	if rules.Threshold < 0 || rules.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidRules, rules.Threshold)
	}
	c, err := r.Lookup(rules.CriterionName)
	if err != nil {
		return err
	}
	return c.ValidateRules(rules)
}

// batchByLoop is the default batch path: per-item Evaluate in input order.
func batchByLoop(ctx context.Context, c Criterion, answers []model.Answer, rules model.Rules) ([]model.CriterionResult, error) {
	results := make([]model.CriterionResult, 0, len(answers))
	for _, a := range answers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.Evaluate(ctx, a, rules)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// allScopes is shared by criteria that apply everywhere.
var allScopes = []model.Scope{model.ScopeAssignment, model.ScopeGroup, model.ScopeTeacher, model.ScopeGlobal}
