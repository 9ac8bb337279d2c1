package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagelearn/sagacity/internal/evalcache"
	"github.com/sagelearn/sagacity/internal/model"
)

// AddCriterion binds a criterion to a profile with deduplicated rules.
// The rules record is validated against the criterion's declared fields
// and resolved get-or-create style; an identical record is reused. A
// profile holds at most one binding per criterion name, so adding a
// criterion that is already bound replaces the prior binding. The
// previous binding is returned for audit (nil when the binding is new).
func (a *Aggregator) AddCriterion(ctx context.Context, qualityID uuid.UUID, rules model.Rules, weight float64) (model.UsesCriterion, *model.UsesCriterion, error) {
	if weight < 0 {
		return model.UsesCriterion{}, nil, fmt.Errorf("%w: weight must be >= 0, got %v", ErrInvalidWeight, weight)
	}
	crit, err := a.registry.Lookup(rules.CriterionName)
	if err != nil {
		return model.UsesCriterion{}, nil, err
	}
	if err := a.registry.ValidateRules(rules); err != nil {
		return model.UsesCriterion{}, nil, err
	}

	stored, err := a.rules.GetOrCreateRules(ctx, rules)
	if err != nil {
		return model.UsesCriterion{}, nil, fmt.Errorf("engine: store rules: %w", err)
	}

	binding := model.UsesCriterion{
		ID:               uuid.New(),
		QualityID:        qualityID,
		CriterionName:    rules.CriterionName,
		CriterionVersion: crit.Describe().Version,
		RulesID:          stored.ID,
		Weight:           weight,
	}
	newBinding, old, err := a.profiles.PutBinding(ctx, binding)
	if err != nil {
		return model.UsesCriterion{}, nil, fmt.Errorf("engine: put binding: %w", err)
	}

	a.logger.Info("engine: criterion bound",
		"quality_id", qualityID, "criterion", rules.CriterionName,
		"version", binding.CriterionVersion, "weight", weight, "replaced", old != nil)
	return newBinding, old, nil
}

// UpdateCriterionWeight changes the weight of an existing binding,
// returning the updated binding with the old and new weight for audit.
// Weight 0 disables the criterion without removing history.
func (a *Aggregator) UpdateCriterionWeight(ctx context.Context, qualityID uuid.UUID, criterionName string, weight float64) (model.UsesCriterion, float64, float64, error) {
	if weight < 0 {
		return model.UsesCriterion{}, 0, 0, fmt.Errorf("%w: weight must be >= 0, got %v", ErrInvalidWeight, weight)
	}
	quality, err := a.profiles.GetProfile(ctx, qualityID)
	if err != nil {
		return model.UsesCriterion{}, 0, 0, err
	}

	for _, binding := range quality.Criteria {
		if binding.CriterionName != criterionName {
			continue
		}
		old := binding.Weight
		binding.Weight = weight
		updated, _, err := a.profiles.PutBinding(ctx, binding)
		if err != nil {
			return model.UsesCriterion{}, 0, 0, fmt.Errorf("engine: put binding: %w", err)
		}
		a.logger.Info("engine: criterion weight updated",
			"quality_id", qualityID, "criterion", criterionName,
			"old_weight", old, "new_weight", weight)
		return updated, old, weight, nil
	}
	return model.UsesCriterion{}, 0, 0, fmt.Errorf("%w: no binding for criterion %q", ErrDanglingReference, criterionName)
}

// RemoveCriterion removes a binding from a profile, returning the
// removed binding for audit.
func (a *Aggregator) RemoveCriterion(ctx context.Context, qualityID uuid.UUID, criterionName string) (model.UsesCriterion, error) {
	removed, err := a.profiles.DeleteBinding(ctx, qualityID, criterionName)
	if err != nil {
		return model.UsesCriterion{}, err
	}
	a.logger.Info("engine: criterion unbound", "quality_id", qualityID, "criterion", criterionName)
	return removed, nil
}

// ListCriteria describes the registered criteria, optionally excluding
// beta criteria (the default for building profiles).
func (a *Aggregator) ListCriteria(includeBeta bool) []model.Criterion {
	all := a.registry.Describe()
	if includeBeta {
		return all
	}
	var stable []model.Criterion
	for _, c := range all {
		if !c.IsBeta {
			stable = append(stable, c)
		}
	}
	return stable
}

// InvalidateCached forces recomputation of one cached criterion score.
// Rarely needed: bumping a criterion's version already changes the key.
func (a *Aggregator) InvalidateCached(ctx context.Context, text, criterionName string, criterionVersion int, rulesID uuid.UUID) error {
	if a.cache == nil {
		return nil
	}
	rules, err := a.rules.GetRules(ctx, rulesID)
	if err != nil {
		return fmt.Errorf("%w: rules %s: %v", ErrDanglingReference, rulesID, err)
	}
	key := evalcache.CriterionKey(text, criterionName, criterionVersion, rules.ContentHash())
	return a.cache.Invalidate(ctx, key)
}
