package criteria

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagelearn/sagacity/internal/lang"
	"github.com/sagelearn/sagacity/internal/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	models, err := lang.New([]string{"english"}, lang.DefaultMaxGram)
	require.NoError(t, err)
	return NewRegistry(models)
}

func TestRegistryLookup(t *testing.T) {
	r := newTestRegistry(t)

	for _, name := range []string{"min_words", "min_chars", "neg_words", "right_answer", "selected_answer", "likelihood"} {
		c, err := r.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Describe().Name)
	}

	_, err := r.Lookup("sentiment")
	assert.ErrorIs(t, err, ErrUnknownCriterion)
}

func TestRegistryNamesSorted(t *testing.T) {
	r := newTestRegistry(t)
	names := r.Names()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestValidateRulesThresholdRange(t *testing.T) {
	r := newTestRegistry(t)

	err := r.ValidateRules(model.Rules{
		CriterionName: "min_words",
		Threshold:     1.5,
		Fields:        model.RuleFields{"min_words": 3},
	})
	assert.ErrorIs(t, err, ErrInvalidRules)

	err = r.ValidateRules(model.Rules{
		CriterionName: "min_words",
		Threshold:     1,
		Fields:        model.RuleFields{"min_words": 3},
	})
	assert.NoError(t, err)
}

func TestMinWords(t *testing.T) {
	c := &minWords{}
	rules := model.Rules{Threshold: 1, Fields: model.RuleFields{"min_words": 3}}

	tests := []struct {
		text  string
		score float64
	}{
		{"a b", 0},
		{"a b c", 1},
		{"  spaced   out   words  ", 1},
		{"", 0},
	}
	for _, tt := range tests {
		res, err := c.Evaluate(context.Background(), model.TextAnswer(tt.text), rules)
		require.NoError(t, err)
		assert.Equal(t, tt.score, res.Score, "%q", tt.text)
	}
}

func TestMinCharsCountsRunes(t *testing.T) {
	c := &minChars{}
	rules := model.Rules{Threshold: 1, Fields: model.RuleFields{"min_chars": 5}}

	res, err := c.Evaluate(context.Background(), model.TextAnswer("héllo"), rules)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Score)

	res, err = c.Evaluate(context.Background(), model.TextAnswer("hell"), rules)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
}

func TestNegWords(t *testing.T) {
	c := &negWords{}
	rules := model.Rules{Threshold: 1, Fields: model.RuleFields{"neg_words": []string{"idk", "whatever"}}}

	tests := []struct {
		name  string
		text  string
		score float64
	}{
		{"clean", "the sum of forces is zero", 1},
		{"match", "idk it just works", 0},
		{"case insensitive", "IDK really", 0},
		{"punctuation stripped", "whatever, it moves", 0},
		{"substring is not a match", "whateverness aside, it moves", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Evaluate(context.Background(), model.TextAnswer(tt.text), rules)
			require.NoError(t, err)
			assert.Equal(t, tt.score, res.Score)
		})
	}
}

func TestNegWordsRejectsEmptyWord(t *testing.T) {
	c := &negWords{}
	err := c.ValidateRules(model.Rules{Fields: model.RuleFields{"neg_words": []string{"idk", " "}}})
	assert.ErrorIs(t, err, ErrInvalidRules)
}

func TestRightAnswer(t *testing.T) {
	c := &rightAnswer{}
	answer := model.Answer{
		Rationale:     "because momentum is conserved",
		HasContext:    true,
		FirstCorrect:  false,
		SecondCorrect: true,
	}

	// Default evaluates the second (post-discussion) choice.
	res, err := c.Evaluate(context.Background(), answer, model.Rules{Threshold: 1, Fields: model.RuleFields{}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Score)

	res, err = c.Evaluate(context.Background(), answer, model.Rules{
		Threshold: 1,
		Fields:    model.RuleFields{"evaluate_on": "first"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
}

func TestRightAnswerNeedsContext(t *testing.T) {
	c := &rightAnswer{}
	_, err := c.Evaluate(context.Background(), model.TextAnswer("bare text"), model.Rules{Threshold: 1})
	assert.ErrorIs(t, err, ErrContextRequired)
}

func TestSelectedAnswer(t *testing.T) {
	c := &selectedAnswer{}
	rules := model.Rules{Threshold: 0, Fields: model.RuleFields{"default_if_never_shown": 0.5}}

	res, err := c.Evaluate(context.Background(), model.Answer{
		HasContext:  true,
		TimesShown:  10,
		TimesChosen: 4,
	}, rules)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, res.Score, 1e-9)

	// Never shown falls back to the configured default.
	res, err = c.Evaluate(context.Background(), model.Answer{HasContext: true}, rules)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Score, 1e-9)
}

func TestLikelihoodValidateRules(t *testing.T) {
	r := newTestRegistry(t)

	err := r.ValidateRules(model.Rules{
		CriterionName: "likelihood",
		Threshold:     0.3,
		Fields:        model.RuleFields{"languages": []string{"english"}},
	})
	assert.NoError(t, err)

	err = r.ValidateRules(model.Rules{
		CriterionName: "likelihood",
		Threshold:     0.3,
		Fields:        model.RuleFields{"languages": []string{"klingon"}},
	})
	assert.ErrorIs(t, err, ErrInvalidRules)

	err = r.ValidateRules(model.Rules{
		CriterionName: "likelihood",
		Threshold:     0.3,
		Fields:        model.RuleFields{"languages": []string{"english"}, "max_gram": 0},
	})
	assert.ErrorIs(t, err, ErrInvalidRules)
}

func TestLikelihoodScoresProseAboveGibberish(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Lookup("likelihood")
	require.NoError(t, err)

	rules := model.Rules{Threshold: 0.3, Fields: model.RuleFields{"languages": []string{"english"}}}

	prose, err := c.Evaluate(context.Background(), model.TextAnswer("the ball keeps moving because no force acts against it"), rules)
	require.NoError(t, err)
	gibberish, err := c.Evaluate(context.Background(), model.TextAnswer("xzqj vwpk gfhx zzyx qqqw"), rules)
	require.NoError(t, err)

	assert.Greater(t, prose.Score, gibberish.Score)
	assert.GreaterOrEqual(t, prose.Score, 0.95)
}

func TestBatchEvaluatePreservesOrder(t *testing.T) {
	c := &minWords{}
	rules := model.Rules{Threshold: 1, Fields: model.RuleFields{"min_words": 2}}

	answers := []model.Answer{
		model.TextAnswer("one"),
		model.TextAnswer("two words"),
		model.TextAnswer("now three words"),
	}
	results, err := c.BatchEvaluate(context.Background(), answers, rules)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0.0, results[0].Score)
	assert.Equal(t, 1.0, results[1].Score)
	assert.Equal(t, 1.0, results[2].Score)
}
