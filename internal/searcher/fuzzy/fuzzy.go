// Package fuzzy finds vocabulary words close to an out-of-vocabulary query
// word. Candidates are limited to words within one rune of the target length
// and ranked by Levenshtein similarity.
package fuzzy

import (
	"sort"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/vocab"
)

// DefaultLimit is the number of matches returned when no limit is given.
const DefaultLimit = 3

// Match is a vocabulary word and its similarity to the looked-up word.
type Match struct {
	Word       string  `json:"word"`
	Similarity float64 `json:"similarity"`
}

// Matcher looks up approximate vocabulary matches.
type Matcher struct {
	// Limit caps the number of matches; zero or less means DefaultLimit.
	Limit int
	// MinSimilarity drops candidates scoring below it.
	MinSimilarity float64
}

// Find returns at most m.Limit matches for word, best first. Equal scores are
// ordered by word so results are stable across runs.
func (m Matcher) Find(word string, lengths *vocab.LengthIndex) []Match {
	limit := m.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	pool := lengths.Neighbors(utf8.RuneCountInString(word))
	matches := make([]Match, 0, len(pool))
	for _, candidate := range pool {
		sim := Ratio(word, candidate)
		if sim < m.MinSimilarity {
			continue
		}
		matches = append(matches, Match{Word: candidate, Similarity: sim})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Word < matches[j].Word
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// FindSimilar is Find with no similarity floor.
func FindSimilar(word string, lengths *vocab.LengthIndex, limit int) []Match {
	return Matcher{Limit: limit}.Find(word, lengths)
}
