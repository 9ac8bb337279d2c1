package lang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownLanguage(t *testing.T) {
	_, err := New([]string{"klingon"}, DefaultMaxGram)
	assert.Error(t, err)

	_, err = New(nil, DefaultMaxGram)
	assert.Error(t, err)
}

func TestModelsAccessors(t *testing.T) {
	m, err := New([]string{"english", "french"}, DefaultMaxGram)
	require.NoError(t, err)

	assert.Equal(t, []string{"english", "french"}, m.Languages())
	assert.Equal(t, DefaultMaxGram, m.MaxGram())
	assert.True(t, m.Has("english"))
	assert.False(t, m.Has("german"))
}

func TestScoreEnglishProse(t *testing.T) {
	m, err := New([]string{"english"}, DefaultMaxGram)
	require.NoError(t, err)

	score, err := m.Score("the ball continues to move because there is no friction to stop it", []string{"english"}, DefaultMaxGram)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.95)
}

func TestScoreGibberish(t *testing.T) {
	m, err := New([]string{"english"}, DefaultMaxGram)
	require.NoError(t, err)

	prose, err := m.Score("energy is conserved in the system", []string{"english"}, DefaultMaxGram)
	require.NoError(t, err)
	gibberish, err := m.Score("xqzjw vkfpx ghjkz wqxzv", []string{"english"}, DefaultMaxGram)
	require.NoError(t, err)

	assert.Less(t, gibberish, prose)
	assert.Less(t, gibberish, 0.95)
}

func TestScoreEmptyText(t *testing.T) {
	m, err := New([]string{"english"}, DefaultMaxGram)
	require.NoError(t, err)

	// Empty or fully filtered text cannot be judged as language.
	for _, text := range []string{"", "12345", "?!.,;"} {
		score, err := m.Score(text, []string{"english"}, DefaultMaxGram)
		require.NoError(t, err)
		assert.Equal(t, 0.0, score, "%q", text)
	}
}

func TestScoreUnknownLanguage(t *testing.T) {
	m, err := New([]string{"english"}, DefaultMaxGram)
	require.NoError(t, err)

	_, err = m.Score("some text", []string{"german"}, DefaultMaxGram)
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestScoreGeometricMean(t *testing.T) {
	m, err := New([]string{"english", "french"}, DefaultMaxGram)
	require.NoError(t, err)

	text := "the motion of the object does not change"
	english, err := m.Score(text, []string{"english"}, DefaultMaxGram)
	require.NoError(t, err)
	french, err := m.Score(text, []string{"french"}, DefaultMaxGram)
	require.NoError(t, err)
	combined, err := m.Score(text, []string{"english", "french"}, DefaultMaxGram)
	require.NoError(t, err)

	// The combined score sits between the per-language scores.
	low, high := english, french
	if low > high {
		low, high = high, low
	}
	assert.GreaterOrEqual(t, combined, low)
	assert.LessOrEqual(t, combined, high)
}

func TestScoreBounds(t *testing.T) {
	m, err := New([]string{"english"}, DefaultMaxGram)
	require.NoError(t, err)

	texts := []string{
		"a perfectly ordinary sentence about physics",
		"zzzzzzzz",
		"mixed up words xqz and prose",
		"a",
	}
	for _, text := range texts {
		score, err := m.Score(text, []string{"english"}, DefaultMaxGram)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, 0.0, "%q", text)
		assert.LessOrEqual(t, score, 1.0, "%q", text)
	}
}

func TestScoreClampsMaxGram(t *testing.T) {
	m, err := New([]string{"english"}, 2)
	require.NoError(t, err)

	// Requests beyond the trained depth fall back to the table depth
	// instead of reading absent tables.
	score, err := m.Score("the answer does not change", []string{"english"}, 5)
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()
	corpus, err := corpusFS.ReadFile("corpus/english.txt")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "english.txt"), corpus, 0o644))

	m, err := NewFromDir(dir, []string{"english"}, DefaultMaxGram)
	require.NoError(t, err)
	score, err := m.Score("this sentence comes from ordinary prose", []string{"english"}, DefaultMaxGram)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.95)

	_, err = NewFromDir(dir, []string{"french"}, DefaultMaxGram)
	assert.Error(t, err)
}

func TestSplitLetterRuns(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, splitLetterRuns("Hello, WORLD!"))
	assert.Equal(t, []string{"a", "b"}, splitLetterRuns("a1b"))
	assert.Empty(t, splitLetterRuns("123 456"))
}
