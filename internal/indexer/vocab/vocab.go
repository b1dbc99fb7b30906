// Package vocab groups the indexed vocabulary by word length so fuzzy
// lookups only compare against words within one character of the target.
package vocab

import (
	"sort"
	"unicode/utf8"
)

// Vocabulary is the key set the length index is derived from.
type Vocabulary interface {
	Words() []string
}

// LengthIndex maps rune length to the distinct words of that length, each
// bucket in lexical order.
type LengthIndex struct {
	buckets map[int][]string
	size    int
}

// Build derives a LengthIndex from v. The result depends only on v's key
// set, so rebuilding from the same vocabulary yields an identical index.
func Build(v Vocabulary) *LengthIndex {
	li := &LengthIndex{buckets: make(map[int][]string)}
	for _, w := range v.Words() {
		n := utf8.RuneCountInString(w)
		li.buckets[n] = append(li.buckets[n], w)
		li.size++
	}
	for _, bucket := range li.buckets {
		sort.Strings(bucket)
	}
	return li
}

// Len returns the words of exactly n runes.
func (li *LengthIndex) Len(n int) []string {
	b := li.buckets[n]
	return b[:len(b):len(b)]
}

// Neighbors returns the words whose length is n-1, n or n+1.
func (li *LengthIndex) Neighbors(n int) []string {
	var out []string
	for l := n - 1; l <= n+1; l++ {
		out = append(out, li.buckets[l]...)
	}
	return out
}

// Lengths returns the populated word lengths in ascending order.
func (li *LengthIndex) Lengths() []int {
	lengths := make([]int, 0, len(li.buckets))
	for n := range li.buckets {
		lengths = append(lengths, n)
	}
	sort.Ints(lengths)
	return lengths
}

// Size is the number of distinct words across all buckets.
func (li *LengthIndex) Size() int {
	return li.size
}
