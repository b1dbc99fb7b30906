// Package tokenizer provides line normalisation and word splitting shared by
// the indexer and the query parser. Lines are whitespace-collapsed and
// trimmed; words are the space-separated pieces of a normalised line,
// lower-cased. No stemming or stop-word removal is applied.
package tokenizer

import (
	"strings"
	"unicode"
)

// Normalize collapses every run of whitespace in line to a single space and
// trims leading and trailing whitespace. Line terminators count as
// whitespace.
func Normalize(line string) string {
	if line == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(line))
	pendingSpace := false
	for _, r := range line {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Words splits an already normalised line on single spaces and lower-cases
// each word. An empty line yields no words.
func Words(normalized string) []string {
	if normalized == "" {
		return nil
	}
	parts := strings.Split(normalized, " ")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		words = append(words, strings.ToLower(p))
	}
	return words
}

// Tokenize normalises raw text and returns its lower-cased words.
func Tokenize(text string) []string {
	return Words(Normalize(text))
}
