// Package score ranks existing entities against an incoming record. All
// functions are pure; retrieval and side effects live with the caller.
package score

import (
	"strings"
)

// minNameLength is the shortest display name worth comparing. Single
// characters produce meaningless similarity ratios.
const minNameLength = 2

// levenshtein computes edit distance over runes with a two-row table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
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
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
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

// ratio maps edit distance onto [0,1]: 1 is identical, 0 shares nothing.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// NameSimilarity compares two display names case-insensitively, tolerant of
// token order ("Smith, Jane" vs "Jane Smith") and minor spelling variance.
// Each token is aligned with its best counterpart and the worst-aligned
// token weighs as much as the average, so a shared surname cannot mask a
// conflicting given name ("John Smith" vs "Mary Smith" scores low). Names
// shorter than two characters score 0.
func NameSimilarity(a, b string) float64 {
	a = normalizeName(a)
	b = normalizeName(b)
	if len([]rune(a)) < minNameLength || len([]rune(b)) < minNameLength {
		return 0
	}
	if a == b {
		return 1
	}

	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	minBest, sum := 1.0, 0.0
	for _, t := range ta {
		best := 0.0
		for _, u := range tb {
			if r := ratio(t, u); r > best {
				best = r
			}
		}
		if best < minBest {
			minBest = best
		}
		sum += best
	}
	sim := (minBest + sum/float64(len(ta))) / 2

	// Catch missing separators ("janesmith" vs "jane smith") without letting
	// whole-string distance resurrect surname-only agreement.
	squashed := ratio(strings.ReplaceAll(a, " ", ""), strings.ReplaceAll(b, " ", ""))
	if squashed >= 0.9 && squashed > sim {
		sim = squashed
	}
	return sim
}

// AddressSimilarity compares normalized postal addresses. Inputs are assumed
// already normalized; absent addresses score 0.
func AddressSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return ratio(a, b)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r == ',' || r == '.' || r == '-' || r == '\'':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
