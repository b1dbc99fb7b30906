package fuzzy

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio is the Levenshtein similarity of a and b on a 0-100 scale, where 100
// means identical. Lengths are measured in runes and two empty strings are
// identical.
func Ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// PartialRatio slides pattern over every equal-length window of text and
// returns the best Ratio, so a pattern contained in text scores 100. When
// text is shorter than pattern there is no window to slide and the whole
// strings are compared; a fragment of the pattern does not score 100.
func PartialRatio(pattern, text string) float64 {
	p, t := []rune(pattern), []rune(text)
	if len(t) < len(p) {
		return Ratio(pattern, text)
	}
	if len(p) == 0 {
		if len(t) == 0 {
			return 100
		}
		return 0
	}
	if strings.Contains(text, pattern) {
		return 100
	}
	best := 0.0
	for i := 0; i+len(p) <= len(t); i++ {
		if r := Ratio(pattern, string(t[i:i+len(p)])); r > best {
			best = r
		}
	}
	return best
}
