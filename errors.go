package sagacity

import (
	"github.com/sagelearn/sagacity/internal/criteria"
	"github.com/sagelearn/sagacity/internal/engine"
	"github.com/sagelearn/sagacity/internal/selector"
	"github.com/sagelearn/sagacity/internal/storage"
)

// Sentinel errors surfaced by the public API. Match with errors.Is.
var (
	// ErrNotFound reports a missing profile, rules record, or binding.
	ErrNotFound = storage.ErrNotFound

	// ErrUnknownCriterion reports a criterion name not in the registry.
	ErrUnknownCriterion = criteria.ErrUnknownCriterion

	// ErrInvalidRules reports rules values that fail criterion validation.
	ErrInvalidRules = criteria.ErrInvalidRules

	// ErrContextRequired reports a context-dependent criterion evaluated
	// against bare text.
	ErrContextRequired = criteria.ErrContextRequired

	// ErrDanglingReference reports a binding that points at a criterion
	// or rules record that no longer exists.
	ErrDanglingReference = engine.ErrDanglingReference

	// ErrInvalidWeight reports a negative binding weight.
	ErrInvalidWeight = engine.ErrInvalidWeight

	// ErrInsufficientRationales reports a selection request that cannot
	// be satisfied from the candidate pool.
	ErrInsufficientRationales = selector.ErrInsufficientRationales
)
