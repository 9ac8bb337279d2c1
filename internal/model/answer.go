package model

import "github.com/google/uuid"

// Answer carries a rationale and the answer-choice context it was written
// in. Text-only evaluation (e.g. validating a new rationale before any
// choice bookkeeping exists) uses TextAnswer, which leaves HasContext
// false; context-aware criteria reject such answers rather than guess.
type Answer struct {
	ID        uuid.UUID `json:"id"`
	Rationale string    `json:"rationale"`

	// Contributor identifies the author, used by the selector to exclude
	// the viewer's own rationale. Opaque to the engine.
	Contributor string `json:"contributor,omitempty"`

	// HasContext reports whether the choice fields below are meaningful.
	HasContext bool `json:"has_context"`

	FirstChoice   string `json:"first_choice,omitempty"`
	SecondChoice  string `json:"second_choice,omitempty"`
	FirstCorrect  bool   `json:"first_correct,omitempty"`
	SecondCorrect bool   `json:"second_correct,omitempty"`

	// TimesShown and TimesChosen track how often this rationale was
	// presented to peers and how often a peer adopted it.
	TimesShown  int `json:"times_shown,omitempty"`
	TimesChosen int `json:"times_chosen,omitempty"`

	// ShowToOthers marks the rationale as visible in peer selection.
	ShowToOthers bool `json:"show_to_others,omitempty"`
}

// TextAnswer wraps bare rationale text in an Answer without choice context.
func TextAnswer(text string) Answer {
	return Answer{Rationale: text}
}
