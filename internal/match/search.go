package match

import (
	"sort"

	"github.com/tomhaynes/dragnet/internal/domain"
)

// SearchSingle scores one query against every (row, column) pair and
// returns all matches at or above the threshold, sorted by descending
// confidence. Ties keep the original row order; column order never
// influences ranking.
func SearchSingle(
	query string,
	columns []string,
	rows []domain.DatasetRow,
	threshold float64,
) []domain.MatchedRecord {
	var matches []domain.MatchedRecord

	for _, row := range rows {
		for _, column := range columns {
			value, ok := row.Values[column]
			if !ok {
				continue
			}

			confidence := Score(query, value)
			if confidence < threshold {
				continue
			}

			matches = append(matches, domain.MatchedRecord{
				QueryName:     query,
				Found:         true,
				Confidence:    confidence,
				MatchedColumn: column,
				MatchedValue:  value,
				EntityRef:     row.EntityRef,
				FullRecord:    row.Values,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	return matches
}

// SearchBulk runs SearchSingle independently for each query and keeps only
// the best match per query. Queries with no match at or above the
// threshold produce a record with Found=false and zero confidence. The
// summary aggregates results across all queries.
func SearchBulk(
	queries []string,
	columns []string,
	rows []domain.DatasetRow,
	threshold float64,
) ([]domain.MatchedRecord, domain.SearchSummary) {
	results := make([]domain.MatchedRecord, len(queries))
	summary := domain.SearchSummary{TotalSearched: len(queries)}

	for i, query := range queries {
		matches := SearchSingle(query, columns, rows, threshold)
		if len(matches) == 0 {
			results[i] = domain.MatchedRecord{QueryName: query, Found: false, Confidence: 0}
			continue
		}

		best := matches[0]
		results[i] = best

		summary.TotalFound++
		if best.Confidence >= threshold {
			summary.TotalAboveThreshold++
		}
		if best.Confidence > summary.MaxConfidence {
			summary.MaxConfidence = best.Confidence
		}
	}

	return results, summary
}
