package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_Range(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"John Smith", "Jon Smith"},
		{"Ahmed Hassan", "Unmatched Name"},
		{"a", "completely different value"},
		{"maria garcia lopez", "lopez maria"},
		{"", "anything"},
		{"anything", ""},
		{"x", "x"},
	}

	for _, pair := range pairs {
		score := Score(pair[0], pair[1])
		assert.GreaterOrEqual(t, score, 0.0, "score(%q,%q)", pair[0], pair[1])
		assert.LessOrEqual(t, score, 100.0, "score(%q,%q)", pair[0], pair[1])
	}
}

func TestScore_IdenticalAfterNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query  string
		target string
	}{
		{"John Smith", "John Smith"},
		{"John Smith", "  john   SMITH "},
		{"O'Brien", "o brien"},
	}

	for _, tt := range tests {
		assert.Equal(t, 100.0, Score(tt.query, tt.target),
			"score(%q,%q) should be 100", tt.query, tt.target)
	}
}

func TestScore_EmptyInputs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Score("", "target"))
	assert.Equal(t, 0.0, Score("query", ""))
	assert.Equal(t, 0.0, Score("", ""))
	assert.Equal(t, 0.0, Score("?!", "target"), "punctuation-only query normalizes to empty")
}

func TestScore_TyposScoreHighButNotPerfect(t *testing.T) {
	t.Parallel()

	score := Score("John Smith", "Jon Smith")
	assert.GreaterOrEqual(t, score, 70.0, "a one-letter typo should clear a 70 threshold")
	assert.Less(t, score, 95.0, "a typo should not clear a 95 threshold")
}

func TestScore_WordReordering(t *testing.T) {
	t.Parallel()

	score := Score("Smith John", "John Smith")
	assert.Equal(t, 100.0, score, "token sort should make word order irrelevant")
}

func TestScore_PartialOverlap(t *testing.T) {
	t.Parallel()

	score := Score("John Smith", "Mr. John Smith Jr.")
	assert.GreaterOrEqual(t, score, 90.0, "a name embedded in a longer value should score high")
}

func TestScore_Unrelated(t *testing.T) {
	t.Parallel()

	score := Score("Ahmed Hassan", "Unmatched Name")
	assert.Less(t, score, 70.0, "unrelated names should stay below a typical threshold")
}
