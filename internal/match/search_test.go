package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomhaynes/dragnet/internal/domain"
)

func nameRows(names ...string) []domain.DatasetRow {
	rows := make([]domain.DatasetRow, len(names))
	for i, name := range names {
		rows[i] = domain.DatasetRow{
			EntityRef: names[i],
			Values:    map[string]string{"name": name, "country": "XX"},
		}
	}
	return rows
}

func TestSearchSingle_ThresholdAndOrdering(t *testing.T) {
	t.Parallel()

	rows := nameRows("Jon Smith", "Totally Different", "John Smith", "Jonathan Smythe")

	matches := SearchSingle("John Smith", []string{"name"}, rows, 70)

	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Confidence, 70.0, "no match may fall below the threshold")
		assert.True(t, m.Found)
		assert.Equal(t, "name", m.MatchedColumn)
	}

	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i].Confidence, matches[i-1].Confidence,
			"matches must be sorted by descending confidence")
	}

	assert.Equal(t, "John Smith", matches[0].MatchedValue, "exact match ranks first")
}

func TestSearchSingle_TieKeepsRowOrder(t *testing.T) {
	t.Parallel()

	// Two identical values tie on confidence; the earlier row must come first.
	rows := []domain.DatasetRow{
		{EntityRef: "1", Values: map[string]string{"name": "Ada Lovelace"}},
		{EntityRef: "2", Values: map[string]string{"name": "Ada Lovelace"}},
	}

	matches := SearchSingle("Ada Lovelace", []string{"name"}, rows, 50)

	require.Len(t, matches, 2)
	assert.Equal(t, "1", matches[0].EntityRef)
	assert.Equal(t, "2", matches[1].EntityRef)
}

func TestSearchSingle_TypoThresholds(t *testing.T) {
	t.Parallel()

	rows := nameRows("Jon Smith")

	assert.NotEmpty(t, SearchSingle("John Smith", []string{"name"}, rows, 70),
		"Jon Smith should match John Smith at threshold 70")
	assert.Empty(t, SearchSingle("John Smith", []string{"name"}, rows, 95),
		"Jon Smith should not match John Smith at threshold 95")
}

func TestSearchSingle_MissingColumnSkipped(t *testing.T) {
	t.Parallel()

	rows := nameRows("John Smith")

	matches := SearchSingle("John Smith", []string{"name", "alias"}, rows, 70)

	require.Len(t, matches, 1, "rows without the requested column contribute nothing")
	assert.Equal(t, "name", matches[0].MatchedColumn)
}

func TestSearchSingle_NoRows(t *testing.T) {
	t.Parallel()

	assert.Empty(t, SearchSingle("John Smith", []string{"name"}, nil, 70))
}

func TestSearchBulk_OneResultPerQuery(t *testing.T) {
	t.Parallel()

	rows := nameRows("Ahmed Hassan", "Maria Garcia", "Chen Wei")
	queries := []string{"Ahmed Hassan", "Maria Garcia", "Nobody Here"}

	results, summary := SearchBulk(queries, []string{"name"}, rows, 80)

	require.Len(t, results, len(queries), "bulk search returns exactly one result per query")
	for i, query := range queries {
		assert.Equal(t, query, results[i].QueryName)
	}

	assert.Equal(t, 3, summary.TotalSearched)
	assert.Equal(t, 2, summary.TotalFound)
	assert.Equal(t, 2, summary.TotalAboveThreshold)
	assert.Equal(t, 100.0, summary.MaxConfidence)
}

func TestSearchBulk_UnmatchedQuery(t *testing.T) {
	t.Parallel()

	rows := nameRows("Ahmed Hassan")
	queries := []string{"Ahmed Hassan", "Unmatched Name"}

	results, summary := SearchBulk(queries, []string{"name"}, rows, 70)

	require.Len(t, results, 2)

	assert.True(t, results[0].Found)
	assert.Equal(t, 100.0, results[0].Confidence)

	assert.False(t, results[1].Found)
	assert.Equal(t, 0.0, results[1].Confidence)

	assert.Equal(t, 2, summary.TotalSearched)
	assert.Equal(t, 1, summary.TotalFound)
	assert.Equal(t, 1, summary.TotalAboveThreshold)
	assert.Equal(t, 100.0, summary.MaxConfidence)
}

func TestSearchBulk_BestMatchPerQuery(t *testing.T) {
	t.Parallel()

	rows := nameRows("Jon Smith", "John Smith")

	results, _ := SearchBulk([]string{"John Smith"}, []string{"name"}, rows, 70)

	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].Confidence, "bulk keeps only the best match per query")
	assert.Equal(t, "John Smith", results[0].MatchedValue)
}
