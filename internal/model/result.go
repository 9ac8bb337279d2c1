package model

// CriterionResult is the outcome of evaluating one criterion binding
// against one answer.
type CriterionResult struct {
	Name      string         `json:"name"`
	Version   int            `json:"version"`
	Weight    float64        `json:"weight"`
	Score     float64        `json:"score"`
	Threshold float64        `json:"threshold"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Failed reports whether the score fell below the binding's threshold.
// Pass/fail is a per-criterion veto, independent of the binding's weight.
func (r CriterionResult) Failed() bool {
	return r.Score < r.Threshold
}

// QualityResult is the aggregate outcome of evaluating a quality profile
// against one answer.
type QualityResult struct {
	// Score is the weighted mean of the per-criterion scores. Nil means
	// the profile had no active bindings — "no opinion", not zero.
	Score *float64 `json:"score"`

	// Criteria holds the per-criterion detail in binding order.
	Criteria []CriterionResult `json:"criteria"`
}

// Failing returns the criteria whose score fell below their threshold.
// An answer fails the profile if any active criterion fails, regardless
// of the weighted overall score.
func (q QualityResult) Failing() []CriterionResult {
	var failing []CriterionResult
	for _, c := range q.Criteria {
		if c.Failed() {
			failing = append(failing, c)
		}
	}
	return failing
}

// Passed reports whether no criterion vetoed the answer.
func (q QualityResult) Passed() bool {
	return len(q.Failing()) == 0
}
