package criteria

import (
	"context"
	"fmt"

	"github.com/sagelearn/sagacity/internal/model"
)

// rightAnswer scores on the correctness of the contributor's answer
// choice: 1 when the choice named by evaluate_on ("first" or "second")
// was correct, 0 otherwise. Requires answer context.
type rightAnswer struct{}

func (c *rightAnswer) Describe() model.Criterion {
	return model.Criterion{
		Name:            "right_answer",
		Version:         1,
		Scopes:          []model.Scope{model.ScopeAssignment, model.ScopeGlobal},
		RuleFields:      []string{"evaluate_on"},
		Description:     "Contributor's answer choice was correct",
		RequiresContext: true,
	}
}

func (c *rightAnswer) ValidateRules(rules model.Rules) error {
	return validateEvaluateOn(rules, "right_answer")
}

func (c *rightAnswer) Evaluate(_ context.Context, a model.Answer, rules model.Rules) (model.CriterionResult, error) {
	if !a.HasContext {
		return model.CriterionResult{}, fmt.Errorf("%w: right_answer", ErrContextRequired)
	}
	on := evaluateOn(rules)
	correct := a.SecondCorrect
	if on == "first" {
		correct = a.FirstCorrect
	}
	score := 0.0
	if correct {
		score = 1.0
	}
	return model.CriterionResult{
		Name:      "right_answer",
		Version:   1,
		Score:     score,
		Threshold: rules.Threshold,
		Detail:    map[string]any{"evaluate_on": on, "correct": correct},
	}, nil
}

func (c *rightAnswer) BatchEvaluate(ctx context.Context, answers []model.Answer, rules model.Rules) ([]model.CriterionResult, error) {
	return batchByLoop(ctx, c, answers, rules)
}

// selectedAnswer scores a rationale by peer adoption: the fraction of
// times it was chosen out of the times it was shown. Never-shown
// rationales fall back to default_if_never_shown so new rationales are
// not starved out of selection. Requires answer context. Beta: adoption
// counts are noisy until a rationale has circulated for a while.
type selectedAnswer struct{}

func (c *selectedAnswer) Describe() model.Criterion {
	return model.Criterion{
		Name:            "selected_answer",
		Version:         1,
		IsBeta:          true,
		Scopes:          []model.Scope{model.ScopeAssignment, model.ScopeGlobal},
		RuleFields:      []string{"default_if_never_shown"},
		Description:     "Rationale is adopted by peers when shown",
		RequiresContext: true,
	}
}

func (c *selectedAnswer) ValidateRules(rules model.Rules) error {
	def, ok := rules.Fields.Float("default_if_never_shown")
	if !ok {
		return fmt.Errorf("%w: selected_answer: missing field default_if_never_shown", ErrInvalidRules)
	}
	if def < 0 || def > 1 {
		return fmt.Errorf("%w: selected_answer: default_if_never_shown %v outside [0,1]", ErrInvalidRules, def)
	}
	return nil
}

func (c *selectedAnswer) Evaluate(_ context.Context, a model.Answer, rules model.Rules) (model.CriterionResult, error) {
	if !a.HasContext {
		return model.CriterionResult{}, fmt.Errorf("%w: selected_answer", ErrContextRequired)
	}
	def, ok := rules.Fields.Float("default_if_never_shown")
	if !ok {
		return model.CriterionResult{}, fmt.Errorf("%w: selected_answer: missing field default_if_never_shown", ErrInvalidRules)
	}
	score := def
	if a.TimesShown > 0 {
		score = float64(a.TimesChosen) / float64(a.TimesShown)
		if score > 1 {
			score = 1
		}
	}
	return model.CriterionResult{
		Name:      "selected_answer",
		Version:   1,
		Score:     score,
		Threshold: rules.Threshold,
		Detail:    map[string]any{"times_shown": a.TimesShown, "times_chosen": a.TimesChosen},
	}, nil
}

func (c *selectedAnswer) BatchEvaluate(ctx context.Context, answers []model.Answer, rules model.Rules) ([]model.CriterionResult, error) {
	return batchByLoop(ctx, c, answers, rules)
}

func evaluateOn(rules model.Rules) string {
	on, ok := rules.Fields.String("evaluate_on")
	if !ok || on == "" {
		return "second"
	}
	return on
}

func validateEvaluateOn(rules model.Rules, name string) error {
	on, ok := rules.Fields.String("evaluate_on")
	if !ok || on == "" {
		return nil
	}
	if on != "first" && on != "second" {
		return fmt.Errorf("%w: %s: evaluate_on must be \"first\" or \"second\", got %q", ErrInvalidRules, name, on)
	}
	return nil
}
