// Package similarity provides the normalized edit-distance ratio used to
// detect duplicate avatar-video jobs before submitting a new paid one.
package similarity

import "strings"

// Normalize collapses runs of whitespace to single spaces and trims the ends,
// so scripts that differ only in formatting compare as near-identical.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Ratio returns a similarity score in [0, 1] between a and b after
// normalization: 1 minus the Levenshtein distance divided by the longer
// length. Two empty strings are fully similar.
func Ratio(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)
	if a == b {
		return 1
	}
	longer := len([]rune(a))
	if lb := len([]rune(b)); lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 1
	}
	return 1 - float64(distance(a, b))/float64(longer)
}

// distance computes the Levenshtein edit distance with a two-row matrix.
func distance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
