// Package similarity scores how alike two URLs are on a 0-100 scale.
package similarity

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
)

// MaxScore is the score of two strings that are equal ignoring case.
const MaxScore = 100

// Ratio returns the normalized Levenshtein similarity of a and b, ignoring case.
func Ratio(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return scale(d, longest)
}

// PartialRatio scores the shorter string against the best-aligning substring
// of the longer one, ignoring case. A string contained in the other scores
// MaxScore regardless of the length difference.
func PartialRatio(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == len(long) {
		return Ratio(a, b)
	}
	if strings.Contains(string(long), string(short)) {
		return MaxScore
	}
	return scale(substringDistance(short, long), len(short))
}

// substringDistance is the smallest edit distance between pattern and any
// substring of text. The first DP row is zero so a match may start anywhere,
// and the minimum of the last row lets it end anywhere.
func substringDistance(pattern, text []rune) int {
	prev := make([]int, len(text)+1)
	cur := make([]int, len(text)+1)
	for i := 1; i <= len(pattern); i++ {
		cur[0] = i
		for j := 1; j <= len(text); j++ {
			cost := 1
			if pattern[i-1] == text[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	best := prev[0]
	for _, d := range prev[1:] {
		best = min(best, d)
	}
	return best
}

func scale(distance, length int) int {
	score := int(math.Round(float64(MaxScore) * (1 - float64(distance)/float64(length))))
	return max(score, 0)
}
