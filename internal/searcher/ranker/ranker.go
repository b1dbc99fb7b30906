package ranker

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/fuzzy"
)

// DefaultTopK is the number of results kept when no limit is given.
const DefaultTopK = 5

type ScoredMatch struct {
	Sentence   string  `json:"sentence"`
	Source     string  `json:"source"`
	LineOffset int     `json:"line_offset"`
	Score      float64 `json:"score"`
}

// Score rewards lines whose text is close to the literal query. The query is
// slid over the line, so a line containing the whole query scores the
// maximum; a line shorter than the query is compared with it whole. The
// result lies in [0, 2*len(query)] and is rounded to two decimals.
func Score(query string, sentence string) float64 {
	n := utf8.RuneCountInString(query)
	if n == 0 {
		return 0
	}
	sim := fuzzy.PartialRatio(strings.ToLower(query), strings.ToLower(sentence))
	raw := 2 * float64(n) * sim / 100
	return math.Round(raw*100) / 100
}

// Rank orders matches by score, highest first, keeping insertion order among
// equal scores, and truncates to topK.
func Rank(matches []ScoredMatch, topK int) []ScoredMatch {
	if topK <= 0 {
		topK = DefaultTopK
	}
	result := make([]ScoredMatch, len(matches))
	copy(result, matches)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	if len(result) > topK {
		result = result[:topK]
	}
	return result
}
