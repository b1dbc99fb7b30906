package executor

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/vocab"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/fuzzy"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/ranker"
)

// Options tune fuzzy resolution of unknown query words.
type Options struct {
	FuzzyLimit    int
	MinSimilarity float64
}

// Resolution is everything learned while matching one query against an
// index. Matches are scored but unranked, in candidate order.
type Resolution struct {
	Query   *parser.Query
	Known   []string
	Unknown []string
	Fuzzy   []fuzzy.Match
	Anchor  string
	Matches []ranker.ScoredMatch
}

// Resolve matches query against idx. A line qualifies when it contains every
// known query word as a substring and, if the query has unknown words, some
// fuzzy replacement for the first of them. Only the first unknown word is
// considered.
func Resolve(query string, idx *index.InvertedIndex, lengths *vocab.LengthIndex, opts Options) *Resolution {
	res, _ := resolve(context.Background(), parser.Parse(query), idx, lengths, opts)
	return res
}

func resolve(ctx context.Context, q *parser.Query, idx *index.InvertedIndex, lengths *vocab.LengthIndex, opts Options) (*Resolution, error) {
	res := &Resolution{
		Query:   q,
		Known:   make([]string, 0, len(q.Words)),
		Unknown: make([]string, 0),
		Fuzzy:   make([]fuzzy.Match, 0),
		Matches: make([]ranker.ScoredMatch, 0),
	}
	if q.Empty() || idx == nil {
		return res, nil
	}

	var pool index.OccurrenceList
	for _, w := range q.Words {
		occ, ok := idx.Lookup(w)
		if !ok {
			res.Unknown = append(res.Unknown, w)
			continue
		}
		res.Known = append(res.Known, w)
		if res.Anchor == "" || len(occ) < len(pool) {
			res.Anchor = w
			pool = occ
		}
	}
	if len(res.Known) == 0 {
		return res, nil
	}

	if len(res.Unknown) > 0 && lengths != nil {
		res.Fuzzy = fuzzy.Matcher{
			Limit:         opts.FuzzyLimit,
			MinSimilarity: opts.MinSimilarity,
		}.Find(res.Unknown[0], lengths)
	}

	for _, occ := range pool {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sentence := strings.ToLower(occ.Sentence)
		if !containsAll(sentence, res.Known) {
			continue
		}
		if len(res.Unknown) > 0 && !containsAny(sentence, res.Fuzzy) {
			continue
		}
		res.Matches = append(res.Matches, ranker.ScoredMatch{
			Sentence:   occ.Sentence,
			Source:     occ.Source,
			LineOffset: occ.LineOffset,
			Score:      ranker.Score(q.Normalized, occ.Sentence),
		})
	}
	return res, nil
}

func containsAll(sentence string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(sentence, w) {
			return false
		}
	}
	return true
}

func containsAny(sentence string, matches []fuzzy.Match) bool {
	for _, m := range matches {
		if strings.Contains(sentence, m.Word) {
			return true
		}
	}
	return false
}
