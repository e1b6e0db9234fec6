package match

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Score computes the similarity between a query and a target value as a
// confidence in [0,100]. Both inputs are normalized first; if either
// normalizes to the empty string the score is 0.
//
// The result is the maximum of four measures: whole-string edit
// similarity, best-substring similarity, order-insensitive token
// similarity, and set-based token similarity. Each measure tolerates a
// different distortion (typos, partial overlap, reordering, token
// insertion), so taking the max catches more true positives.
func Score(query, target string) float64 {
	q := Normalize(query)
	t := Normalize(target)

	if q == "" || t == "" {
		return 0
	}

	score := ratio(q, t)
	if s := partialRatio(q, t); s > score {
		score = s
	}
	if s := tokenSortRatio(q, t); s > score {
		score = s
	}
	if s := tokenSetRatio(q, t); s > score {
		score = s
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ratio is the whole-string edit similarity: 100 when the strings are
// equal, scaled down by the Levenshtein distance relative to the longer
// string.
func ratio(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(dist)/float64(longest))
}

// partialRatio slides the shorter string across the longer one and
// returns the best window similarity, so a name embedded in a longer
// field still scores high.
func partialRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)

	shorter, longer := ra, rb
	if len(rb) < len(ra) {
		shorter, longer = rb, ra
	}
	if len(shorter) == 0 {
		return 0
	}
	if len(shorter) == len(longer) {
		return ratio(string(shorter), string(longer))
	}

	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := string(longer[i : i+len(shorter)])
		if s := ratio(string(shorter), window); s > best {
			best = s
		}
		if best == 100 {
			break
		}
	}
	return best
}

// tokenSortRatio compares the two strings with their tokens sorted,
// making the measure insensitive to word order.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	ts := tokens(s)
	sort.Strings(ts)
	return strings.Join(ts, " ")
}

// tokenSetRatio compares the shared token set against each side's full
// token set, tolerating extra tokens on either side.
func tokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var common, onlyA, onlyB []string
	for tok := range setA {
		if setB[tok] {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			onlyB = append(onlyB, tok)
		}
	}

	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := ratio(base, combinedA)
	if s := ratio(base, combinedB); s > best {
		best = s
	}
	if s := ratio(combinedA, combinedB); s > best {
		best = s
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokens(s) {
		set[tok] = true
	}
	return set
}
