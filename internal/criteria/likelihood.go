package criteria

import (
	"context"
	"fmt"

	"github.com/sagelearn/sagacity/internal/lang"
	"github.com/sagelearn/sagacity/internal/model"
)

// likelihood is the statistical "is this gibberish" detector: it scores
// how plausible the rationale is as natural language in any of the
// accepted languages, using the shared n-gram models. This is the most
// expensive criterion (table lookups per character) and the primary
// reason the evaluation cache exists.
type likelihood struct {
	models *lang.Models
}

func (c *likelihood) Describe() model.Criterion {
	return model.Criterion{
		Name:        "likelihood",
		Version:     1,
		Scopes:      allScopes,
		RuleFields:  []string{"languages", "max_gram"},
		Description: "Rationale is plausible natural language, not gibberish",
	}
}

func (c *likelihood) ValidateRules(rules model.Rules) error {
	if _, ok := rules.Fields["max_gram"]; ok {
		maxGram, ok := rules.Fields.Int("max_gram")
		if !ok || maxGram < 1 {
			return fmt.Errorf("%w: likelihood: max_gram must be >= 1", ErrInvalidRules)
		}
	}
	languages, ok := rules.Fields.Strings("languages")
	if !ok || len(languages) == 0 {
		return fmt.Errorf("%w: likelihood: missing field languages", ErrInvalidRules)
	}
	for _, language := range languages {
		if !c.models.Has(language) {
			return fmt.Errorf("%w: likelihood: no model for language %q", ErrInvalidRules, language)
		}
	}
	return nil
}

func (c *likelihood) Evaluate(_ context.Context, a model.Answer, rules model.Rules) (model.CriterionResult, error) {
	languages, ok := rules.Fields.Strings("languages")
	if !ok {
		return model.CriterionResult{}, fmt.Errorf("%w: likelihood: missing field languages", ErrInvalidRules)
	}
	maxGram, ok := rules.Fields.Int("max_gram")
	if !ok {
		maxGram = c.models.MaxGram()
	}

	score, err := c.models.Score(a.Rationale, languages, maxGram)
	if err != nil {
		return model.CriterionResult{}, fmt.Errorf("criteria: likelihood: %w", err)
	}
	return model.CriterionResult{
		Name:      "likelihood",
		Version:   1,
		Score:     score,
		Threshold: rules.Threshold,
		Detail:    map[string]any{"languages": languages, "max_gram": maxGram},
	}, nil
}

func (c *likelihood) BatchEvaluate(ctx context.Context, answers []model.Answer, rules model.Rules) ([]model.CriterionResult, error) {
	return batchByLoop(ctx, c, answers, rules)
}
