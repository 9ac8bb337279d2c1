// Package lang implements the n-gram language-likelihood model behind the
// "likelihood" criterion. A text is scored by comparing its log-likelihood
// under a trained per-language n-gram model against a uniform random-noise
// baseline over the same alphabet. Scores are in [0, 1]; ~1 means
// "confidently natural language".
//
// Scores for multiple accepted languages are combined by geometric mean.
// Most gibberish detectors use max across languages instead; the geometric
// mean is a deliberate behavior carried over from the product contract —
// it rewards agreement across per-language judgments while a strongly
// rejecting language still drags the score down.
package lang

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

//go:embed corpus/*.txt
var corpusFS embed.FS

// DefaultMaxGram bounds the n-gram window when none is configured.
const DefaultMaxGram = 3

// floorProb is substituted for unseen n-grams so log never sees zero.
const floorProb = 1e-16

// ErrUnknownLanguage is returned when a score request names a language
// no model was trained for.
var ErrUnknownLanguage = errors.New("lang: unknown language")

// Models holds the trained per-language models. Read-only after New;
// safe for concurrent use.
type Models struct {
	byLanguage map[string]*Model
	maxGram    int
}

// New trains models for the given languages from the embedded corpora.
// Table building is the expensive part and happens once at start-up.
func New(languages []string, maxGram int) (*Models, error) {
	if maxGram < 1 {
		maxGram = DefaultMaxGram
	}
	if len(languages) == 0 {
		return nil, errors.New("lang: no languages configured")
	}
	byLanguage := make(map[string]*Model, len(languages))
	for _, language := range languages {
		text, err := corpusFS.ReadFile("corpus/" + language + ".txt")
		if err != nil {
			return nil, fmt.Errorf("lang: no embedded corpus for %q: %w", language, err)
		}
		byLanguage[language] = Train(language, string(text), maxGram)
	}
	return &Models{byLanguage: byLanguage, maxGram: maxGram}, nil
}

// NewFromDir trains models from <dir>/<language>.txt files. Hosts with
// larger corpora than the embedded samples use this.
func NewFromDir(dir string, languages []string, maxGram int) (*Models, error) {
	if maxGram < 1 {
		maxGram = DefaultMaxGram
	}
	byLanguage := make(map[string]*Model, len(languages))
	for _, language := range languages {
		text, err := os.ReadFile(filepath.Join(dir, language+".txt"))
		if err != nil {
			return nil, fmt.Errorf("lang: read corpus for %q: %w", language, err)
		}
		byLanguage[language] = Train(language, string(text), maxGram)
	}
	return &Models{byLanguage: byLanguage, maxGram: maxGram}, nil
}

// Languages returns the trained language names, sorted.
func (m *Models) Languages() []string {
	names := make([]string, 0, len(m.byLanguage))
	for name := range m.byLanguage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxGram returns the largest n the tables were trained for.
func (m *Models) MaxGram() int { return m.maxGram }

// Has reports whether a model exists for the language.
func (m *Models) Has(language string) bool {
	_, ok := m.byLanguage[language]
	return ok
}

// Score computes the combined likelihood score of text across the named
// languages. maxGram must be at most the trained table depth; values
// above it are clamped. Returns 0 when the text is empty after alphabet
// filtering in any language (it cannot be judged as that language).
func (m *Models) Score(text string, languages []string, maxGram int) (float64, error) {
	if len(languages) == 0 {
		languages = m.Languages()
	}
	if maxGram < 1 || maxGram > m.maxGram {
		maxGram = m.maxGram
	}

	product := 1.0
	for _, language := range languages {
		mod, ok := m.byLanguage[language]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
		}
		s := mod.Score(text, maxGram)
		if s == 0 {
			return 0, nil
		}
		product *= s
	}
	return math.Pow(product, 1/float64(len(languages))), nil
}
