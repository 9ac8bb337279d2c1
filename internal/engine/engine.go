// Package engine implements the quality aggregator: it evaluates answers
// against a quality profile's weighted criterion bindings, producing an
// overall weighted score plus per-criterion detail, and applies the
// validation flow (veto pass/fail, rejection logging).
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/sagelearn/sagacity/internal/criteria"
	"github.com/sagelearn/sagacity/internal/evalcache"
	"github.com/sagelearn/sagacity/internal/model"
	"github.com/sagelearn/sagacity/internal/telemetry"
)

var (
	// ErrDanglingReference is returned when a binding points at a criterion
	// or rules record that does not exist. This is configuration corruption:
	// it surfaces to the caller and is never retried or masked.
	ErrDanglingReference = errors.New("engine: dangling criterion or rules reference")

	// ErrInvalidWeight is returned for negative binding weights.
	ErrInvalidWeight = errors.New("engine: invalid binding weight")
)

// batchParallelism bounds concurrent per-item evaluations in the batch
// path. Items are independent, so the limit only protects the cache
// store from lookup bursts.
const batchParallelism = 8

// RulesStore provides versioned, deduplicated rules records.
type RulesStore interface {
	GetRules(ctx context.Context, id uuid.UUID) (model.Rules, error)
	GetOrCreateRules(ctx context.Context, rules model.Rules) (model.Rules, error)
}

// ProfileStore provides quality profiles and their criterion bindings.
type ProfileStore interface {
	// ProfileForScope resolves the profile for a scope and use type,
	// falling back to the global profile when no scoped override exists.
	ProfileForScope(ctx context.Context, scope model.Scope, useType model.UseType) (model.Quality, error)
	GetProfile(ctx context.Context, id uuid.UUID) (model.Quality, error)
	// PutBinding inserts or replaces the binding for its criterion name,
	// returning the stored binding and the previous one (nil if new).
	PutBinding(ctx context.Context, binding model.UsesCriterion) (model.UsesCriterion, *model.UsesCriterion, error)
	// DeleteBinding removes and returns the named binding.
	DeleteBinding(ctx context.Context, qualityID uuid.UUID, criterionName string) (model.UsesCriterion, error)
}

// RejectionSink is the append-only audit log for failed validations.
type RejectionSink interface {
	Append(ctx context.Context, rejected model.RejectedAnswer) error
}

// Aggregator evaluates answers against quality profiles.
type Aggregator struct {
	registry   *criteria.Registry
	rules      RulesStore
	profiles   ProfileStore
	cache      *evalcache.Cache
	rejections RejectionSink
	logger     *slog.Logger

	evaluations metric.Int64Counter
	rejected    metric.Int64Counter
}

// New creates an aggregator. All collaborators are required except the
// rejection sink, which may be nil when the host owns rejection logging.
func New(registry *criteria.Registry, rules RulesStore, profiles ProfileStore, cache *evalcache.Cache, rejections RejectionSink, logger *slog.Logger) *Aggregator {
	a := &Aggregator{
		registry:   registry,
		rules:      rules,
		profiles:   profiles,
		cache:      cache,
		rejections: rejections,
		logger:     logger,
	}
	meter := telemetry.Meter("sagacity/engine")
	a.evaluations, _ = meter.Int64Counter("sagacity.engine.evaluations_total",
		metric.WithDescription("Total criterion evaluations performed"))
	a.rejected, _ = meter.Int64Counter("sagacity.engine.rejections_total",
		metric.WithDescription("Total rationales rejected by validation"))
	return a
}

// Evaluate scores one answer against the profile's active bindings.
// With zero active bindings the result carries a nil score — the profile
// has no opinion, which is distinct from a score of zero.
func (a *Aggregator) Evaluate(ctx context.Context, quality model.Quality, answer model.Answer) (model.QualityResult, error) {
	active := quality.ActiveCriteria()
	if len(active) == 0 {
		return model.QualityResult{}, nil
	}

	var weightedSum, totalWeight float64
	results := make([]model.CriterionResult, 0, len(active))
	for _, binding := range active {
		res, err := a.evaluateBinding(ctx, binding, answer)
		if err != nil {
			return model.QualityResult{}, err
		}
		weightedSum += binding.Weight * res.Score
		totalWeight += binding.Weight
		results = append(results, res)
	}

	score := weightedSum / totalWeight
	return model.QualityResult{Score: &score, Criteria: results}, nil
}

// BatchEvaluate scores answers against the profile. Output order matches
// input order so callers can zip results back to their answers. Items
// are evaluated in parallel up to batchParallelism; any error cancels
// the batch.
func (a *Aggregator) BatchEvaluate(ctx context.Context, quality model.Quality, answers []model.Answer) ([]model.QualityResult, error) {
	results := make([]model.QualityResult, len(answers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)
	for i, answer := range answers {
		g.Go(func() error {
			res, err := a.Evaluate(gctx, quality, answer)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Validate gates a rationale at submission time against the scope's
// validation profile. Any failing criterion vetoes the text regardless
// of the weighted overall score. A rejection is appended to the sink —
// that append is the expected output of a failed validation, not an
// error path.
func (a *Aggregator) Validate(ctx context.Context, scope model.Scope, text string) (model.QualityResult, []model.RejectionReason, error) {
	quality, err := a.profiles.ProfileForScope(ctx, scope, model.UseValidation)
	if err != nil {
		return model.QualityResult{}, nil, err
	}

	result, err := a.Evaluate(ctx, quality, model.TextAnswer(text))
	if err != nil {
		return model.QualityResult{}, nil, err
	}

	failing := result.Failing()
	if len(failing) == 0 {
		return result, nil, nil
	}

	reasons := make([]model.RejectionReason, 0, len(failing))
	for _, f := range failing {
		reasons = append(reasons, model.RejectionReason{
			Criterion: f.Name,
			Version:   f.Version,
			Score:     f.Score,
			Threshold: f.Threshold,
		})
	}
	a.rejected.Add(ctx, 1)

	if a.rejections != nil {
		rec := model.RejectedAnswer{
			ID:        uuid.New(),
			QualityID: quality.ID,
			Rationale: text,
			Reasons:   reasons,
		}
		if err := a.rejections.Append(ctx, rec); err != nil {
			return model.QualityResult{}, nil, fmt.Errorf("engine: append rejection: %w", err)
		}
	}
	return result, reasons, nil
}

// Rank scores a corpus of answers against the scope's evaluation profile.
func (a *Aggregator) Rank(ctx context.Context, scope model.Scope, answers []model.Answer) ([]model.QualityResult, error) {
	quality, err := a.profiles.ProfileForScope(ctx, scope, model.UseEvaluation)
	if err != nil {
		return nil, err
	}
	return a.BatchEvaluate(ctx, quality, answers)
}

// evaluateBinding scores one binding against one answer, routing pure
// text criteria through the content-addressed cache. Criterion errors
// propagate unchanged: converting them into a zero score would be
// indistinguishable from a legitimate low score.
func (a *Aggregator) evaluateBinding(ctx context.Context, binding model.UsesCriterion, answer model.Answer) (model.CriterionResult, error) {
	crit, err := a.registry.Lookup(binding.CriterionName)
	if err != nil {
		return model.CriterionResult{}, fmt.Errorf("%w: criterion %q", ErrDanglingReference, binding.CriterionName)
	}
	rules, err := a.rules.GetRules(ctx, binding.RulesID)
	if err != nil {
		return model.CriterionResult{}, fmt.Errorf("%w: rules %s for criterion %q: %v", ErrDanglingReference, binding.RulesID, binding.CriterionName, err)
	}

	a.evaluations.Add(ctx, 1)

	var result model.CriterionResult
	if crit.Describe().RequiresContext || a.cache == nil {
		result, err = crit.Evaluate(ctx, answer, rules)
		if err != nil {
			return model.CriterionResult{}, err
		}
	} else {
		key := evalcache.CriterionKey(answer.Rationale, binding.CriterionName, binding.CriterionVersion, rules.ContentHash())
		raw, err := a.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
			res, err := crit.Evaluate(ctx, answer, rules)
			if err != nil {
				return nil, err
			}
			return json.Marshal(res)
		})
		if err != nil {
			return model.CriterionResult{}, err
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return model.CriterionResult{}, fmt.Errorf("engine: decode cached score: %w", err)
		}
	}

	result.Weight = binding.Weight
	return result, nil
}
