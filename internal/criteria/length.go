package criteria

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sagelearn/sagacity/internal/model"
)

// minWords scores 1 when the rationale has at least min_words
// whitespace-separated words, 0 otherwise.
type minWords struct{}

func (c *minWords) Describe() model.Criterion {
	return model.Criterion{
		Name:        "min_words",
		Version:     1,
		Scopes:      allScopes,
		RuleFields:  []string{"min_words"},
		Description: "Rationale has a minimum number of words",
	}
}

func (c *minWords) ValidateRules(rules model.Rules) error {
	min, ok := rules.Fields.Int("min_words")
	if !ok {
		return fmt.Errorf("%w: min_words: missing field min_words", ErrInvalidRules)
	}
	if min < 0 {
		return fmt.Errorf("%w: min_words: must be >= 0, got %d", ErrInvalidRules, min)
	}
	return nil
}

func (c *minWords) Evaluate(_ context.Context, a model.Answer, rules model.Rules) (model.CriterionResult, error) {
	min, ok := rules.Fields.Int("min_words")
	if !ok {
		return model.CriterionResult{}, fmt.Errorf("%w: min_words: missing field min_words", ErrInvalidRules)
	}
	count := len(strings.Fields(a.Rationale))
	score := 0.0
	if count >= min {
		score = 1.0
	}
	return model.CriterionResult{
		Name:      "min_words",
		Version:   1,
		Score:     score,
		Threshold: rules.Threshold,
		Detail:    map[string]any{"word_count": count, "min_words": min},
	}, nil
}

func (c *minWords) BatchEvaluate(ctx context.Context, answers []model.Answer, rules model.Rules) ([]model.CriterionResult, error) {
	return batchByLoop(ctx, c, answers, rules)
}

// minChars scores 1 when the rationale has at least min_chars runes,
// 0 otherwise. Counts runes, not bytes, so accented text is not penalized.
type minChars struct{}

func (c *minChars) Describe() model.Criterion {
	return model.Criterion{
		Name:        "min_chars",
		Version:     1,
		Scopes:      allScopes,
		RuleFields:  []string{"min_chars"},
		Description: "Rationale has a minimum number of characters",
	}
}

func (c *minChars) ValidateRules(rules model.Rules) error {
	min, ok := rules.Fields.Int("min_chars")
	if !ok {
		return fmt.Errorf("%w: min_chars: missing field min_chars", ErrInvalidRules)
	}
	if min < 0 {
		return fmt.Errorf("%w: min_chars: must be >= 0, got %d", ErrInvalidRules, min)
	}
	return nil
}

func (c *minChars) Evaluate(_ context.Context, a model.Answer, rules model.Rules) (model.CriterionResult, error) {
	min, ok := rules.Fields.Int("min_chars")
	if !ok {
		return model.CriterionResult{}, fmt.Errorf("%w: min_chars: missing field min_chars", ErrInvalidRules)
	}
	count := utf8.RuneCountInString(a.Rationale)
	score := 0.0
	if count >= min {
		score = 1.0
	}
	return model.CriterionResult{
		Name:      "min_chars",
		Version:   1,
		Score:     score,
		Threshold: rules.Threshold,
		Detail:    map[string]any{"char_count": count, "min_chars": min},
	}, nil
}

func (c *minChars) BatchEvaluate(ctx context.Context, answers []model.Answer, rules model.Rules) ([]model.CriterionResult, error) {
	return batchByLoop(ctx, c, answers, rules)
}
