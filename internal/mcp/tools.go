package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/sagelearn/sagacity/internal/model"
	"github.com/sagelearn/sagacity/internal/selector"
)

func (s *Server) registerTools() {
	// sagacity_validate — gate one rationale against the validation profile.
	s.mcpServer.AddTool(
		mcplib.NewTool("sagacity_validate",
			mcplib.WithDescription(`Validate one rationale against the active validation profile.

Every bound criterion is scored on [0, 1]. The rationale passes only if
no criterion scores below its threshold; the weighted overall score is
informational and never decides acceptance. Rejections are appended to
the audit log with structured per-criterion reasons.

WHAT YOU GET BACK:
- passed: whether the rationale cleared every criterion threshold
- score: weighted mean of criterion scores (null if no active criteria)
- criteria: per-criterion name, version, score, and threshold
- reasons: the failing criteria, empty when passed`),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("scope",
				mcplib.Description("Profile scope to validate under: assignment, group, teacher, or global"),
				mcplib.Required(),
			),
			mcplib.WithString("text",
				mcplib.Description("The rationale text to validate"),
				mcplib.Required(),
			),
		),
		s.handleValidate,
	)

	// sagacity_rank — score a batch of rationales for ranking.
	s.mcpServer.AddTool(
		mcplib.NewTool("sagacity_rank",
			mcplib.WithDescription(`Score a batch of rationales with the evaluation profile.

Returns one result per rationale, in input order, each carrying the
weighted quality score and per-criterion breakdown. Use the scores to
rank or weight rationales; this tool never rejects anything.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("scope",
				mcplib.Description("Profile scope to evaluate under: assignment, group, teacher, or global"),
				mcplib.Required(),
			),
			mcplib.WithString("rationales",
				mcplib.Description(`JSON array of rationale strings, e.g. ["because the force is constant", "gravity pulls down"]`),
				mcplib.Required(),
			),
		),
		s.handleRank,
	)

	// sagacity_select — draw a quality-weighted review set.
	s.mcpServer.AddTool(
		mcplib.NewTool("sagacity_select",
			mcplib.WithDescription(`Select rationales for a student to review.

Groups the candidate pool by answer choice, keeps the viewer's own
choice plus one opposing choice (uniform among other correct choices
when the viewer was correct, proportional to candidate counts among
incorrect choices otherwise), and samples each group without
replacement, weighted by evaluation-profile quality scores. The
"stick with my own rationale" sentinel is always appended.

The same seed with the same inputs always yields the same selection.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("scope",
				mcplib.Description("Profile scope whose evaluation profile weights the draw"),
				mcplib.Required(),
			),
			mcplib.WithString("viewer",
				mcplib.Description("Contributor id of the requesting student; their own rationales are excluded"),
				mcplib.Required(),
			),
			mcplib.WithString("viewer_choice",
				mcplib.Description("Label of the viewer's first answer choice"),
				mcplib.Required(),
			),
			mcplib.WithBoolean("viewer_correct",
				mcplib.Description("Whether the viewer's first choice was correct"),
			),
			mcplib.WithString("choices",
				mcplib.Description(`JSON array of answer choices, e.g. [{"label":"A","correct":true},{"label":"B","correct":false}]`),
				mcplib.Required(),
			),
			mcplib.WithString("candidates",
				mcplib.Description(`JSON array of candidate answers with at least rationale, contributor, first_choice, and show_to_others fields`),
				mcplib.Required(),
			),
			mcplib.WithString("excluded",
				mcplib.Description("Optional JSON array of contributor ids that must not be shown"),
			),
			mcplib.WithNumber("per_choice",
				mcplib.Description("Rationales to draw per shown choice"),
				mcplib.Min(1),
				mcplib.Max(20),
				mcplib.DefaultNumber(4),
			),
			mcplib.WithNumber("seed",
				mcplib.Description("Seed for the random draws; fix it to reproduce a selection"),
			),
		),
		s.handleSelect,
	)

	// sagacity_criteria — describe the registered criteria.
	s.mcpServer.AddTool(
		mcplib.NewTool("sagacity_criteria",
			mcplib.WithDescription(`List the registered scoring criteria.

Each entry names the criterion, its version, the rule fields it accepts,
the scopes it applies to, and whether it needs question context. Beta
criteria are hidden unless include_beta is set.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithBoolean("include_beta",
				mcplib.Description("Include criteria still marked beta"),
			),
		),
		s.handleCriteria,
	)
}

func (s *Server) handleValidate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	scope := model.Scope(request.GetString("scope", ""))
	if !scope.IsValid() {
		return errorResult(fmt.Sprintf("invalid scope %q", scope)), nil
	}
	text := request.GetString("text", "")
	if text == "" {
		return errorResult("text is required"), nil
	}

	result, reasons, err := s.agg.Validate(ctx, scope, text)
	if err != nil {
		return errorResult(fmt.Sprintf("validate failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"passed":   result.Passed(),
		"score":    result.Score,
		"criteria": result.Criteria,
		"reasons":  reasons,
	}), nil
}

func (s *Server) handleRank(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	scope := model.Scope(request.GetString("scope", ""))
	if !scope.IsValid() {
		return errorResult(fmt.Sprintf("invalid scope %q", scope)), nil
	}

	var texts []string
	if err := json.Unmarshal([]byte(request.GetString("rationales", "")), &texts); err != nil {
		return errorResult(fmt.Sprintf("rationales must be a JSON array of strings: %v", err)), nil
	}
	if len(texts) == 0 {
		return errorResult("rationales must not be empty"), nil
	}

	answers := make([]model.Answer, len(texts))
	for i, t := range texts {
		answers[i] = model.TextAnswer(t)
	}

	results, err := s.agg.Rank(ctx, scope, answers)
	if err != nil {
		return errorResult(fmt.Sprintf("rank failed: %v", err)), nil
	}

	type ranked struct {
		Rationale string                  `json:"rationale"`
		Score     *float64                `json:"score"`
		Criteria  []model.CriterionResult `json:"criteria"`
	}
	out := make([]ranked, len(results))
	for i, r := range results {
		out[i] = ranked{Rationale: texts[i], Score: r.Score, Criteria: r.Criteria}
	}

	return jsonResult(map[string]any{"results": out}), nil
}

func (s *Server) handleSelect(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	scope := model.Scope(request.GetString("scope", ""))
	if !scope.IsValid() {
		return errorResult(fmt.Sprintf("invalid scope %q", scope)), nil
	}

	q := selector.Query{
		Scope:         scope,
		Viewer:        request.GetString("viewer", ""),
		ViewerChoice:  request.GetString("viewer_choice", ""),
		ViewerCorrect: request.GetBool("viewer_correct", false),
		PerChoice:     request.GetInt("per_choice", 4),
		Seed:          int64(request.GetInt("seed", 0)),
	}
	if q.Viewer == "" || q.ViewerChoice == "" {
		return errorResult("viewer and viewer_choice are required"), nil
	}

	if err := json.Unmarshal([]byte(request.GetString("choices", "")), &q.Choices); err != nil {
		return errorResult(fmt.Sprintf("choices must be a JSON array: %v", err)), nil
	}
	if err := json.Unmarshal([]byte(request.GetString("candidates", "")), &q.Candidates); err != nil {
		return errorResult(fmt.Sprintf("candidates must be a JSON array: %v", err)), nil
	}
	if raw := request.GetString("excluded", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Excluded); err != nil {
			return errorResult(fmt.Sprintf("excluded must be a JSON array of strings: %v", err)), nil
		}
	}

	result, err := s.sel.Select(ctx, q)
	if err != nil {
		if errors.Is(err, selector.ErrInsufficientRationales) {
			return errorResult(fmt.Sprintf("not enough rationales to build a review set: %v", err)), nil
		}
		return errorResult(fmt.Sprintf("select failed: %v", err)), nil
	}

	return jsonResult(result), nil
}

func (s *Server) handleCriteria(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	includeBeta := request.GetBool("include_beta", false)
	return jsonResult(map[string]any{
		"criteria": s.agg.ListCriteria(includeBeta),
	}), nil
}
