package lang

import (
	"math"
	"strings"
	"unicode"
)

// Model is a trained n-gram frequency table for one language. The tables
// map n-grams (n = 1..maxGram) to their relative frequency in the training
// corpus. Read-only after Train.
type Model struct {
	language string
	maxGram  int
	alphabet map[rune]bool

	// probs[n-1] maps each n-gram to count(gram) / total n-grams.
	probs []map[string]float64
}

// Train builds frequency tables from a corpus. The alphabet is learned
// from the corpus itself: every letter that appears, case-folded.
// Non-letter characters act as word boundaries and are dropped.
func Train(language, corpus string, maxGram int) *Model {
	m := &Model{
		language: language,
		maxGram:  maxGram,
		alphabet: make(map[rune]bool),
		probs:    make([]map[string]float64, maxGram),
	}

	counts := make([]map[string]int, maxGram)
	totals := make([]int, maxGram)
	for n := range counts {
		counts[n] = make(map[string]int)
	}

	for _, word := range splitLetterRuns(corpus) {
		for _, r := range word {
			m.alphabet[r] = true
		}
		runes := []rune(word)
		for n := 1; n <= maxGram; n++ {
			for i := 0; i+n <= len(runes); i++ {
				counts[n-1][string(runes[i:i+n])]++
				totals[n-1]++
			}
		}
	}

	for n := range counts {
		m.probs[n] = make(map[string]float64, len(counts[n]))
		for gram, c := range counts[n] {
			m.probs[n][gram] = float64(c) / float64(totals[n])
		}
	}
	return m
}

// Language returns the language this model was trained for.
func (m *Model) Language() string { return m.language }

// Score compares the text's log-likelihood under this model against a
// uniform baseline over the same alphabet:
//
//	1 - min(1, exp(baseline - language))
//
// Characters outside the learned alphabet are excluded from both sides.
// Empty text after filtering scores 0 — it cannot be judged as language.
func (m *Model) Score(text string, maxGram int) float64 {
	if maxGram < 1 || maxGram > m.maxGram {
		maxGram = m.maxGram
	}

	langLL, chars := m.logLikelihood(text, maxGram)
	if chars == 0 {
		return 0
	}
	// Uniform baseline: every character (first or conditional) carries
	// probability 1/|alphabet|.
	noiseLL := float64(chars) * -math.Log(float64(len(m.alphabet)))

	return 1 - math.Min(1, math.Exp(noiseLL-langLL))
}

// logLikelihood sums, over the filtered words of text, the log-probability
// of each word's first character plus the log conditional ratio
// P(gram_n)/P(gram_{n-1}) for each subsequent position. Beyond maxGram the
// window slides, reusing the same ratio. Unseen grams get floorProb.
func (m *Model) logLikelihood(text string, maxGram int) (ll float64, chars int) {
	for _, word := range splitLetterRuns(text) {
		runes := m.filterAlphabet(word)
		if len(runes) == 0 {
			continue
		}
		chars += len(runes)

		ll += math.Log(m.prob(1, string(runes[:1])))
		for i := 1; i < len(runes); i++ {
			n := i + 1
			if n > maxGram {
				n = maxGram
			}
			gram := string(runes[i+1-n : i+1])
			prev := string(runes[i+1-n : i])
			ll += math.Log(m.prob(n, gram) / m.prob(n-1, prev))
		}
	}
	return ll, chars
}

// prob returns the stored frequency of gram at depth n, or floorProb for
// unseen grams. n = 0 is the empty prefix of a 1-gram and has probability 1.
func (m *Model) prob(n int, gram string) float64 {
	if n == 0 {
		return 1
	}
	if p, ok := m.probs[n-1][gram]; ok {
		return p
	}
	return floorProb
}

// filterAlphabet keeps only the runes this model learned.
func (m *Model) filterAlphabet(word string) []rune {
	var runes []rune
	for _, r := range word {
		if m.alphabet[r] {
			runes = append(runes, r)
		}
	}
	return runes
}

// splitLetterRuns case-folds the text and splits it into maximal runs of
// letters. Everything that is not a letter is a word boundary.
func splitLetterRuns(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
