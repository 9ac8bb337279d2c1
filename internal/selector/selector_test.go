package selector

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagelearn/sagacity/internal/criteria"
	"github.com/sagelearn/sagacity/internal/engine"
	"github.com/sagelearn/sagacity/internal/evalcache"
	"github.com/sagelearn/sagacity/internal/lang"
	"github.com/sagelearn/sagacity/internal/memstore"
	"github.com/sagelearn/sagacity/internal/model"
	"github.com/sagelearn/sagacity/internal/testutil"
)

// newTestSelector builds a selector over in-memory stores. Tests that
// need quality weighting bind criteria to the returned store's global
// evaluation profile themselves; without bindings the draw is uniform.
func newTestSelector(t *testing.T) (*Selector, *engine.Aggregator, *memstore.Store) {
	t.Helper()
	models, err := lang.New([]string{"english"}, lang.DefaultMaxGram)
	require.NoError(t, err)
	store := memstore.New()
	agg := engine.New(criteria.NewRegistry(models), store, store, evalcache.New(store), store, testutil.TestLogger())

	_, err = store.CreateProfile(context.Background(), model.Quality{
		Scope:   model.ScopeGlobal,
		UseType: model.UseEvaluation,
	})
	require.NoError(t, err)

	return New(agg, testutil.TestLogger()), agg, store
}

func candidate(i int, choice string, correct bool) model.Answer {
	return model.Answer{
		ID:           uuid.New(),
		Rationale:    fmt.Sprintf("rationale %d arguing for choice %s", i, choice),
		Contributor:  fmt.Sprintf("student-%d", i),
		FirstChoice:  choice,
		FirstCorrect: correct,
		ShowToOthers: true,
	}
}

func twoChoiceQuery(seed int64) Query {
	var candidates []model.Answer
	for i := 0; i < 5; i++ {
		candidates = append(candidates, candidate(i, "A", true))
	}
	for i := 5; i < 10; i++ {
		candidates = append(candidates, candidate(i, "B", false))
	}
	return Query{
		Scope:         model.ScopeGlobal,
		Viewer:        "viewer",
		ViewerChoice:  "A",
		ViewerCorrect: true,
		Choices:       []Choice{{Label: "A", Correct: true}, {Label: "B", Correct: false}},
		Candidates:    candidates,
		PerChoice:     3,
		Seed:          seed,
	}
}

func TestSelectShape(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	result, err := sel.Select(context.Background(), twoChoiceQuery(7))
	require.NoError(t, err)

	require.Len(t, result.Groups, 2)
	assert.Equal(t, "A", result.Groups[0].Label)
	assert.True(t, result.Groups[0].Correct)
	assert.Equal(t, "B", result.Groups[1].Label)
	assert.False(t, result.Groups[1].Correct)
	assert.Len(t, result.Groups[0].Rationales, 3)
	assert.Len(t, result.Groups[1].Rationales, 3)
	assert.Equal(t, SelfOptionText, result.SelfOption)
}

func TestSelectNoDuplicates(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	for seed := int64(0); seed < 20; seed++ {
		result, err := sel.Select(context.Background(), twoChoiceQuery(seed))
		require.NoError(t, err)
		seen := make(map[uuid.UUID]bool)
		for _, g := range result.Groups {
			for _, r := range g.Rationales {
				assert.False(t, seen[r.ID], "duplicate rationale under seed %d", seed)
				seen[r.ID] = true
			}
		}
	}
}

func TestSelectDeterministicUnderSeed(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	first, err := sel.Select(context.Background(), twoChoiceQuery(99))
	require.NoError(t, err)
	second, err := sel.Select(context.Background(), twoChoiceQuery(99))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A different seed is allowed to produce a different draw; over many
	// seeds at least one must differ or the seed is not driving the draw.
	varied := false
	for seed := int64(0); seed < 10 && !varied; seed++ {
		other, err := sel.Select(context.Background(), twoChoiceQuery(seed))
		require.NoError(t, err)
		varied = fmt.Sprint(other) != fmt.Sprint(first)
	}
	assert.True(t, varied)
}

func TestSelectFiltersCandidates(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	q := twoChoiceQuery(1)
	// The viewer's own rationale, a hidden one, and an excluded
	// contributor must never appear.
	own := candidate(100, "A", true)
	own.Contributor = "viewer"
	hidden := candidate(101, "A", true)
	hidden.ShowToOthers = false
	banned := candidate(102, "A", true)
	q.Candidates = append(q.Candidates, own, hidden, banned)
	q.Excluded = []string{banned.Contributor}
	q.PerChoice = 20

	result, err := sel.Select(context.Background(), q)
	require.NoError(t, err)
	for _, g := range result.Groups {
		for _, r := range g.Rationales {
			assert.NotEqual(t, own.ID, r.ID)
			assert.NotEqual(t, hidden.ID, r.ID)
			assert.NotEqual(t, banned.ID, r.ID)
		}
	}
}

func TestSelectInsufficientRationales(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	q := twoChoiceQuery(1)
	q.Candidates = nil
	_, err := sel.Select(context.Background(), q)
	assert.ErrorIs(t, err, ErrInsufficientRationales)
}

func TestSelectRejectsZeroPerChoice(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	q := twoChoiceQuery(1)
	q.PerChoice = 0
	_, err := sel.Select(context.Background(), q)
	assert.Error(t, err)
}

func TestSelectSmallPool(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	q := twoChoiceQuery(3)
	q.Candidates = []model.Answer{
		candidate(0, "A", true),
		candidate(1, "B", false),
	}
	q.PerChoice = 4

	// Groups shrink to what exists instead of failing.
	result, err := sel.Select(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)
	assert.Len(t, result.Groups[0].Rationales, 1)
	assert.Len(t, result.Groups[1].Rationales, 1)
}

func TestOpposingChoiceCorrectViewer(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	// Viewer answered A (correct). C is also correct, B is not: the
	// opposing group must be C, never B, even though B has more
	// candidates.
	var candidates []model.Answer
	candidates = append(candidates, candidate(0, "A", true))
	for i := 1; i < 6; i++ {
		candidates = append(candidates, candidate(i, "B", false))
	}
	candidates = append(candidates, candidate(6, "C", true))

	q := Query{
		Scope:         model.ScopeGlobal,
		Viewer:        "viewer",
		ViewerChoice:  "A",
		ViewerCorrect: true,
		Choices: []Choice{
			{Label: "A", Correct: true},
			{Label: "B", Correct: false},
			{Label: "C", Correct: true},
		},
		Candidates: candidates,
		PerChoice:  2,
	}
	for seed := int64(0); seed < 10; seed++ {
		q.Seed = seed
		result, err := sel.Select(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, result.Groups, 2)
		assert.Equal(t, "C", result.Groups[1].Label, "seed %d", seed)
	}
}

func TestOpposingChoiceIncorrectViewerProportional(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	// Viewer answered B (incorrect). C and D are the other incorrect
	// choices; C has 9 candidates and D has 1, so C should be picked
	// about nine times as often.
	var candidates []model.Answer
	candidates = append(candidates, candidate(0, "B", false))
	for i := 1; i < 10; i++ {
		candidates = append(candidates, candidate(i, "C", false))
	}
	candidates = append(candidates, candidate(10, "D", false))

	q := Query{
		Scope:        model.ScopeGlobal,
		Viewer:       "viewer",
		ViewerChoice: "B",
		Choices: []Choice{
			{Label: "A", Correct: true},
			{Label: "B", Correct: false},
			{Label: "C", Correct: false},
			{Label: "D", Correct: false},
		},
		Candidates: candidates,
		PerChoice:  1,
	}

	counts := map[string]int{}
	const trials = 400
	for seed := int64(0); seed < trials; seed++ {
		q.Seed = seed
		result, err := sel.Select(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, result.Groups, 2)
		counts[result.Groups[1].Label]++
	}

	assert.Zero(t, counts["A"], "correct choice must not oppose an incorrect viewer")
	assert.Greater(t, counts["C"], counts["D"])
	// Rough proportionality: C holds 90% of the incorrect pool.
	assert.Greater(t, counts["C"], trials*7/10)
	assert.Greater(t, counts["D"], 0)
}

func TestOpposingChoiceFallback(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	// Viewer is correct but no other correct choice has candidates:
	// fall back to an incorrect choice rather than showing nothing.
	q := Query{
		Scope:         model.ScopeGlobal,
		Viewer:        "viewer",
		ViewerChoice:  "A",
		ViewerCorrect: true,
		Choices:       []Choice{{Label: "A", Correct: true}, {Label: "B", Correct: false}},
		Candidates: []model.Answer{
			candidate(0, "A", true),
			candidate(1, "B", false),
		},
		PerChoice: 1,
		Seed:      5,
	}
	result, err := sel.Select(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)
	assert.Equal(t, "B", result.Groups[1].Label)
}

func TestOpposingChoiceNoneAvailable(t *testing.T) {
	sel, _, _ := newTestSelector(t)

	// Only the viewer's own choice has candidates: one group, no error.
	q := Query{
		Scope:         model.ScopeGlobal,
		Viewer:        "viewer",
		ViewerChoice:  "A",
		ViewerCorrect: true,
		Choices:       []Choice{{Label: "A", Correct: true}, {Label: "B", Correct: false}},
		Candidates:    []model.Answer{candidate(0, "A", true), candidate(1, "A", true)},
		PerChoice:     2,
		Seed:          5,
	}
	result, err := sel.Select(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, "A", result.Groups[0].Label)
}

// Quality-weighted draws should prefer higher-scoring rationales. With
// a min_words criterion and a pool where half the rationales are too
// short, long rationales must dominate the samples.
func TestSampleWeightedByQuality(t *testing.T) {
	sel, agg, store := newTestSelector(t)
	ctx := context.Background()

	profile, err := store.ProfileForScope(ctx, model.ScopeGlobal, model.UseEvaluation)
	require.NoError(t, err)
	_, _, err = agg.AddCriterion(ctx, profile.ID, model.Rules{
		CriterionName: "min_words",
		Threshold:     0,
		Fields:        model.RuleFields{"min_words": 4},
	}, 1)
	require.NoError(t, err)

	var candidates []model.Answer
	for i := 0; i < 4; i++ {
		long := candidate(i, "A", true)
		long.Rationale = fmt.Sprintf("a long and thorough rationale number %d", i)
		candidates = append(candidates, long)
	}
	for i := 4; i < 8; i++ {
		short := candidate(i, "A", true)
		short.Rationale = "short"
		candidates = append(candidates, short)
	}

	q := Query{
		Scope:         model.ScopeGlobal,
		Viewer:        "viewer",
		ViewerChoice:  "A",
		ViewerCorrect: true,
		Choices:       []Choice{{Label: "A", Correct: true}},
		Candidates:    candidates,
		PerChoice:     1,
	}

	longDrawn := 0
	const trials = 200
	for seed := int64(0); seed < trials; seed++ {
		q.Seed = seed
		result, err := sel.Select(ctx, q)
		require.NoError(t, err)
		require.Len(t, result.Groups, 1)
		require.Len(t, result.Groups[0].Rationales, 1)
		if len(result.Groups[0].Rationales[0].Rationale) > len("short") {
			longDrawn++
		}
	}
	// Shorts score 0 and can only be drawn when weights degrade to
	// uniform, which cannot happen here.
	assert.Equal(t, trials, longDrawn)
}

func TestSampleWithoutReplacementChiSquared(t *testing.T) {
	// Weighted draw frequencies should track the weights. Weights 1:2:3,
	// single draw each trial, chi-squared against expected proportions.
	weights := []float64{1, 2, 3}
	const trials = 6000
	rng := rand.New(rand.NewSource(42))

	counts := make([]float64, len(weights))
	for i := 0; i < trials; i++ {
		drawn := sampleWithoutReplacement(rng, weights, 1)
		require.Len(t, drawn, 1)
		counts[drawn[0]]++
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	var chi2 float64
	for i, w := range weights {
		expected := trials * w / total
		diff := counts[i] - expected
		chi2 += diff * diff / expected
	}
	// 2 degrees of freedom, p = 0.001 critical value is 13.82.
	assert.Less(t, chi2, 13.82)
}

func TestSampleWithoutReplacementExhaustsPool(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	drawn := sampleWithoutReplacement(rng, []float64{1, 1, 1}, 10)
	assert.ElementsMatch(t, []int{0, 1, 2}, drawn)
}

func TestDrawWeightedZeroTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		idx := drawWeighted(rng, []float64{0, 0, 0})
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 3)
	}
}
