package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/tomhaynes/dragnet/internal/store"
)

// Delimiter candidates tried, in order, when sniffing fails.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// ErrDelimiterAmbiguous is returned by DetectDelimiter when no candidate
// appears a consistent number of times per line.
var ErrDelimiterAmbiguous = errors.New("could not sniff a consistent delimiter")

// sniffLineLimit caps how many sample lines the sniffer inspects.
const sniffLineLimit = 10

// DetectDelimiter sniffs the field delimiter from a sample of the source.
// A candidate qualifies when it occurs the same non-zero number of times
// on every inspected line; among qualifying candidates the one with the
// highest per-line count wins. Returns ErrDelimiterAmbiguous when no
// candidate qualifies, in which case the caller falls back to
// FallbackDelimiter.
func DetectDelimiter(sample []byte) (rune, error) {
	lines := sampleLines(sample)
	if len(lines) == 0 {
		return 0, ErrDelimiterAmbiguous
	}

	var best rune
	bestCount := 0

	for _, candidate := range delimiterCandidates {
		count := strings.Count(lines[0], string(candidate))
		if count == 0 {
			continue
		}

		consistent := true
		for _, line := range lines[1:] {
			if strings.Count(line, string(candidate)) != count {
				consistent = false
				break
			}
		}

		if consistent && count > bestCount {
			best = candidate
			bestCount = count
		}
	}

	if bestCount == 0 {
		return 0, ErrDelimiterAmbiguous
	}
	return best, nil
}

// FallbackDelimiter tries each candidate in turn and selects whichever
// parses the sample's first record into the greatest number of columns.
// Returns ErrParseFailure when no candidate parses at all.
func FallbackDelimiter(sample []byte) (rune, error) {
	var best rune
	bestColumns := 0

	for _, candidate := range delimiterCandidates {
		reader := csv.NewReader(bytes.NewReader(sample))
		reader.Comma = candidate
		reader.FieldsPerRecord = -1

		record, err := reader.Read()
		if err != nil {
			continue
		}

		if len(record) > bestColumns {
			best = candidate
			bestColumns = len(record)
		}
	}

	if bestColumns == 0 {
		return 0, fmt.Errorf("%w: no candidate delimiter parses the sample", store.ErrParseFailure)
	}
	return best, nil
}

// sampleLines splits the sample into complete non-empty lines. The final
// line is dropped when the sample was cut mid-line, so a truncated row
// never skews the per-line counts.
func sampleLines(sample []byte) []string {
	text := strings.ReplaceAll(string(sample), "\r\n", "\n")
	truncated := !strings.HasSuffix(text, "\n")

	lines := strings.Split(text, "\n")
	if truncated && len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}

	var out []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
		if len(out) == sniffLineLimit {
			break
		}
	}
	return out
}
