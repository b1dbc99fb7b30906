package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/tokenizer"
)

// InvertedIndex maps lower-case words to the lines they occur in, in scan
// order. It is filled by a single builder and sealed before queries run;
// after Seal it is safe for concurrent readers.
type InvertedIndex struct {
	entries     map[string]OccurrenceList
	lines       int
	occurrences int
	sealed      bool
}

func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{
		entries: make(map[string]OccurrenceList),
	}
}

// Upsert appends occ to word's list, creating the entry if absent. Keys must
// be non-empty and lower-case; anything else is a caller bug.
func (x *InvertedIndex) Upsert(word string, occ *Occurrence) {
	if x.sealed {
		panic("index: upsert on sealed index")
	}
	if word == "" {
		panic("index: empty word")
	}
	if strings.ToLower(word) != word {
		panic(fmt.Sprintf("index: word %q is not lower-case", word))
	}
	x.entries[word] = append(x.entries[word], occ)
	x.occurrences++
}

// AddLine normalises raw and records one Occurrence per word. Lines that
// normalise to nothing are skipped. It returns the number of words recorded.
func (x *InvertedIndex) AddLine(raw string, source string, offset int) int {
	sentence := tokenizer.Normalize(raw)
	words := tokenizer.Words(sentence)
	if len(words) == 0 {
		return 0
	}
	occ := &Occurrence{
		Sentence:   sentence,
		Source:     source,
		LineOffset: offset,
	}
	for _, w := range words {
		x.Upsert(w, occ)
	}
	x.lines++
	return len(words)
}

// Lookup returns the occurrences of word. The returned slice must not be
// modified.
func (x *InvertedIndex) Lookup(word string) (OccurrenceList, bool) {
	occ, ok := x.entries[word]
	if !ok {
		return nil, false
	}
	return occ[:len(occ):len(occ)], true
}

func (x *InvertedIndex) Contains(word string) bool {
	_, ok := x.entries[word]
	return ok
}

// Words returns the vocabulary in lexical order.
func (x *InvertedIndex) Words() []string {
	words := make([]string, 0, len(x.entries))
	for w := range x.entries {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

func (x *InvertedIndex) Snapshot() []TermEntry {
	words := x.Words()
	entries := make([]TermEntry, 0, len(words))
	for _, w := range words {
		occ := x.entries[w]
		entries = append(entries, TermEntry{
			Term:        w,
			Occurrences: append(OccurrenceList(nil), occ...),
		})
	}
	return entries
}

// Seal freezes the index. Further Upsert or AddLine calls panic.
func (x *InvertedIndex) Seal() {
	x.sealed = true
}

func (x *InvertedIndex) Sealed() bool {
	return x.sealed
}

// Len is the number of distinct words.
func (x *InvertedIndex) Len() int {
	return len(x.entries)
}

func (x *InvertedIndex) Lines() int {
	return x.lines
}

func (x *InvertedIndex) Occurrences() int {
	return x.occurrences
}
