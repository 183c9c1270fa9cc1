// Package similarity provides a normalized Levenshtein score used to decide
// whether an autosaved result should update the latest history record or
// create a new one.
package similarity

import "strings"

// DefaultThreshold is the score at or above which two texts are considered
// the same document for autosave purposes.
const DefaultThreshold = 0.9

// Score returns a case-insensitive similarity in [0, 1]. Identical strings
// score 1.0; strings with nothing in common approach 0. If either string is
// empty the score is 1.0 only when both are. The distance is the exact
// dynamic-programming Levenshtein distance over runes, with no early
// termination, so results are reproducible.
func Score(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if a == "" || b == "" {
		if a == "" && b == "" {
			return 1.0
		}
		return 0.0
	}

	ra := []rune(a)
	rb := []rune(b)

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}

	score := 1.0 - float64(distance(ra, rb))/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// distance computes the Levenshtein edit distance between two rune slices
// using the full dynamic-programming matrix.
func distance(a, b []rune) int {
	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = minInt(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
