// Package selector picks the rationales shown to a student during peer
// review: a bounded, quality-weighted, duplicate-free sample of prior
// rationales for the student's own answer choice and one contrasting
// choice, always closed out by the "stick with my own rationale" option.
//
// Weighted sampling without replacement is used instead of top-k so that
// the same few "best" rationales are not shown to everyone and new good
// rationales can surface. All randomness flows through one injected
// source, so selection is deterministic under a fixed seed.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/sagelearn/sagacity/internal/engine"
	"github.com/sagelearn/sagacity/internal/model"
)

// ErrInsufficientRationales is returned when a required answer choice
// has no visible candidate rationales. The caller must surface a "no
// seed rationales yet" state rather than present an empty set.
var ErrInsufficientRationales = errors.New("selector: insufficient rationales")

// SelfOptionText is the always-present final option.
const SelfOptionText = "I stick with my own rationale"

// Choice is one answer choice of the question under review.
type Choice struct {
	Label   string
	Correct bool
}

// Query describes one selection request.
type Query struct {
	// Scope selects the evaluation profile used for quality weighting.
	Scope model.Scope

	// Viewer is the requesting student's contributor id; their own
	// rationales are never offered back to them.
	Viewer string

	// ViewerChoice is the viewer's first answer choice label.
	ViewerChoice string

	// ViewerCorrect reports whether the viewer's first choice was correct.
	ViewerCorrect bool

	// Choices are all answer choices of the question.
	Choices []Choice

	// Candidates is the pool of stored rationales across all choices.
	Candidates []model.Answer

	// Excluded lists contributors whose rationales must not be shown
	// (unverified accounts, opt-outs).
	Excluded []string

	// PerChoice bounds how many rationales are drawn per shown choice.
	PerChoice int

	// Seed drives all random draws for this request.
	Seed int64
}

// ChoiceGroup pairs a shown answer choice with its sampled rationales.
type ChoiceGroup struct {
	Label      string
	Correct    bool
	Rationales []model.Answer
}

// Result is a completed selection.
type Result struct {
	Groups []ChoiceGroup

	// SelfOption is the sentinel appended after all sampled rationales.
	SelfOption string
}

// Selector draws rationale samples weighted by quality scores.
type Selector struct {
	agg    *engine.Aggregator
	logger *slog.Logger
}

// New creates a selector over the given aggregator.
func New(agg *engine.Aggregator, logger *slog.Logger) *Selector {
	return &Selector{agg: agg, logger: logger}
}

// Select builds the review set for one student. Rationales are grouped
// by the choice they argue for: the viewer's own choice first, then one
// opposing choice picked per the correctness rules. Each group's sample
// is drawn without replacement, weighted by evaluation-profile quality
// scores.
func (s *Selector) Select(ctx context.Context, q Query) (Result, error) {
	if q.PerChoice <= 0 {
		return Result{}, fmt.Errorf("selector: per-choice sample size must be > 0, got %d", q.PerChoice)
	}

	rng := rand.New(rand.NewSource(q.Seed))
	byChoice := s.groupCandidates(q)

	own := byChoice[q.ViewerChoice]
	if len(own) == 0 {
		return Result{}, fmt.Errorf("%w: no candidates for choice %q", ErrInsufficientRationales, q.ViewerChoice)
	}

	labels := []string{q.ViewerChoice}
	if opposing, ok := s.pickOpposing(q, byChoice, rng); ok {
		labels = append(labels, opposing)
	}

	groups := make([]ChoiceGroup, 0, len(labels))
	for _, label := range labels {
		candidates := byChoice[label]
		if len(candidates) == 0 {
			return Result{}, fmt.Errorf("%w: no candidates for choice %q", ErrInsufficientRationales, label)
		}
		sample, err := s.sampleGroup(ctx, q, candidates, rng)
		if err != nil {
			return Result{}, err
		}
		groups = append(groups, ChoiceGroup{
			Label:      label,
			Correct:    choiceCorrect(q.Choices, label),
			Rationales: sample,
		})
	}

	s.logger.Debug("rationale selection complete",
		"viewer", q.Viewer,
		"choice", q.ViewerChoice,
		"groups", len(groups),
	)
	return Result{Groups: groups, SelfOption: SelfOptionText}, nil
}

// groupCandidates applies the visibility filters and buckets the pool by
// first answer choice.
func (s *Selector) groupCandidates(q Query) map[string][]model.Answer {
	excluded := make(map[string]bool, len(q.Excluded))
	for _, contributor := range q.Excluded {
		excluded[contributor] = true
	}

	byChoice := make(map[string][]model.Answer)
	for _, a := range q.Candidates {
		if !a.ShowToOthers || a.Contributor == q.Viewer || excluded[a.Contributor] {
			continue
		}
		byChoice[a.FirstChoice] = append(byChoice[a.FirstChoice], a)
	}
	return byChoice
}

// pickOpposing chooses the contrasting answer choice. A correct first
// choice contrasts with another correct choice, uniformly at random when
// several exist. An incorrect first choice contrasts with an incorrect
// choice drawn proportionally to how many candidates chose it, so common
// wrong answers are the likely contrast. When the preferred pool is
// empty the draw falls back to any other choice with candidates; false
// means no opposing group can be shown at all.
func (s *Selector) pickOpposing(q Query, byChoice map[string][]model.Answer, rng *rand.Rand) (string, bool) {
	var preferred []string
	var weights []float64
	for _, c := range q.Choices {
		if c.Label == q.ViewerChoice || len(byChoice[c.Label]) == 0 {
			continue
		}
		if q.ViewerCorrect && c.Correct {
			preferred = append(preferred, c.Label)
			weights = append(weights, 1)
		}
		if !q.ViewerCorrect && !c.Correct {
			preferred = append(preferred, c.Label)
			weights = append(weights, float64(len(byChoice[c.Label])))
		}
	}

	if len(preferred) == 0 {
		// Fall back to any other choice that has candidates.
		for _, c := range q.Choices {
			if c.Label == q.ViewerChoice || len(byChoice[c.Label]) == 0 {
				continue
			}
			preferred = append(preferred, c.Label)
			weights = append(weights, 1)
		}
	}

	switch len(preferred) {
	case 0:
		return "", false
	case 1:
		return preferred[0], true
	}
	return preferred[drawWeighted(rng, weights)], true
}

// sampleGroup scores the candidates through the aggregator's batch path
// and draws min(PerChoice, len(candidates)) distinct rationales.
func (s *Selector) sampleGroup(ctx context.Context, q Query, candidates []model.Answer, rng *rand.Rand) ([]model.Answer, error) {
	results, err := s.agg.Rank(ctx, q.Scope, candidates)
	if err != nil {
		return nil, err
	}

	weights := make([]float64, len(candidates))
	var total float64
	uniform := false
	for i, r := range results {
		if r.Score == nil {
			// Profile has no active criteria: no opinion, weight uniformly.
			uniform = true
			break
		}
		weights[i] = *r.Score
		total += *r.Score
	}
	if uniform || total == 0 {
		for i := range weights {
			weights[i] = 1
		}
	}

	k := q.PerChoice
	if k > len(candidates) {
		k = len(candidates)
	}

	sample := make([]model.Answer, 0, k)
	for _, idx := range sampleWithoutReplacement(rng, weights, k) {
		sample = append(sample, candidates[idx])
	}
	return sample, nil
}

// sampleWithoutReplacement draws k distinct indices, each draw weighted
// by the remaining distribution: sample one index, remove it,
// renormalize, repeat.
func sampleWithoutReplacement(rng *rand.Rand, weights []float64, k int) []int {
	remaining := make([]int, len(weights))
	for i := range remaining {
		remaining[i] = i
	}
	live := append([]float64(nil), weights...)

	drawn := make([]int, 0, k)
	for len(drawn) < k && len(remaining) > 0 {
		pos := drawWeighted(rng, live)
		drawn = append(drawn, remaining[pos])
		remaining = append(remaining[:pos], remaining[pos+1:]...)
		live = append(live[:pos], live[pos+1:]...)
	}
	return drawn
}

// drawWeighted samples one index proportionally to weights. A zero total
// degrades to a uniform draw.
func drawWeighted(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return rng.Intn(len(weights))
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(weights) - 1
}

func choiceCorrect(choices []Choice, label string) bool {
	for _, c := range choices {
		if c.Label == label {
			return c.Correct
		}
	}
	return false
}
