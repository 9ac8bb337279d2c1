package criteria

import (
	"context"
	"fmt"
	"strings"

	"github.com/sagelearn/sagacity/internal/model"
)

// negWords scores 0 when the rationale contains any configured negative
// word (profanity, dismissive phrasing), 1 otherwise. Matching is
// case-insensitive on whole words.
type negWords struct{}

func (c *negWords) Describe() model.Criterion {
	return model.Criterion{
		Name:        "neg_words",
		Version:     1,
		Scopes:      allScopes,
		RuleFields:  []string{"neg_words"},
		Description: "Rationale avoids a configured list of negative words",
	}
}

func (c *negWords) ValidateRules(rules model.Rules) error {
	words, ok := rules.Fields.Strings("neg_words")
	if !ok {
		return fmt.Errorf("%w: neg_words: missing field neg_words", ErrInvalidRules)
	}
	for _, w := range words {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("%w: neg_words: empty word in list", ErrInvalidRules)
		}
	}
	return nil
}

func (c *negWords) Evaluate(_ context.Context, a model.Answer, rules model.Rules) (model.CriterionResult, error) {
	negative, ok := rules.Fields.Strings("neg_words")
	if !ok {
		return model.CriterionResult{}, fmt.Errorf("%w: neg_words: missing field neg_words", ErrInvalidRules)
	}

	blocked := make(map[string]bool, len(negative))
	for _, w := range negative {
		blocked[strings.ToLower(w)] = true
	}

	var matched []string
	for _, word := range strings.Fields(a.Rationale) {
		folded := strings.ToLower(strings.Trim(word, ".,;:!?\"'()[]"))
		if blocked[folded] {
			matched = append(matched, folded)
		}
	}

	score := 1.0
	if len(matched) > 0 {
		score = 0.0
	}
	return model.CriterionResult{
		Name:      "neg_words",
		Version:   1,
		Score:     score,
		Threshold: rules.Threshold,
		Detail:    map[string]any{"matched": matched},
	}, nil
}

func (c *negWords) BatchEvaluate(ctx context.Context, answers []model.Answer, rules model.Rules) ([]model.CriterionResult, error) {
	return batchByLoop(ctx, c, answers, rules)
}
