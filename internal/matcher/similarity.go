// file: internal/matcher/similarity.go
// version: 2.0.0
// guid: a1b2c3d4-e5f6-7890-abcd-ef1234567890

package matcher

import (
	"strings"
	"unicode"
)

// Similarity computes a symmetric, case-insensitive similarity ratio between
// two strings in [0, 1]: 2*LCS(a,b) / (len(a)+len(b)). Either side being
// empty yields 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	lcs := lcsLength(ra, rb)
	return 2.0 * float64(lcs) / float64(len(ra)+len(rb))
}

// lcsLength computes the longest-common-subsequence length between two rune
// slices using a single-row DP, same shape as the edit-distance loop.
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		curr := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev = curr
	}
	return prev[len(b)]
}

// BestSimilarity returns the highest Similarity between query and any of the
// candidates. Empty inputs score 0.
func BestSimilarity(query string, candidates []string) float64 {
	best := 0.0
	for _, c := range candidates {
		if s := Similarity(query, c); s > best {
			best = s
		}
	}
	return best
}

// normalize lowercases and strips non-alphanumeric characters except spaces.
func normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
