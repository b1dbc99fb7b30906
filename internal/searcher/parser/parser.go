package parser

import (
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/tokenizer"
)

// Query is a free-text query split the same way indexed lines are.
type Query struct {
	Raw        string
	Normalized string
	Words      []string
}

func Parse(raw string) *Query {
	normalized := tokenizer.Normalize(raw)
	q := &Query{
		Raw:        raw,
		Normalized: normalized,
		Words:      tokenizer.Words(normalized),
	}
	if q.Words == nil {
		q.Words = make([]string, 0)
	}
	return q
}

// Empty reports whether the query has no words after normalisation.
func (q *Query) Empty() bool {
	return len(q.Words) == 0
}
