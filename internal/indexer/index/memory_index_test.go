package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLine_RecordsEveryWord(t *testing.T) {
	x := NewInvertedIndex()
	n := x.AddLine("  The  quick brown\tfox \n", "a.txt", 0)

	assert.Equal(t, 4, n)
	assert.Equal(t, 1, x.Lines())
	assert.Equal(t, 4, x.Occurrences())
	assert.Equal(t, []string{"brown", "fox", "quick", "the"}, x.Words())

	occ, ok := x.Lookup("the")
	require.True(t, ok)
	require.Len(t, occ, 1)
	assert.Equal(t, Occurrence{Sentence: "The quick brown fox", Source: "a.txt", LineOffset: 0}, *occ[0])
}

func TestAddLine_SharesOccurrenceAcrossWords(t *testing.T) {
	x := NewInvertedIndex()
	x.AddLine("red fox", "a.txt", 3)

	red, _ := x.Lookup("red")
	fox, _ := x.Lookup("fox")
	assert.Same(t, red[0], fox[0])
}

func TestAddLine_BlankLineSkipped(t *testing.T) {
	x := NewInvertedIndex()
	assert.Zero(t, x.AddLine("   \t\n", "a.txt", 0))
	assert.Zero(t, x.Lines())
	assert.Zero(t, x.Len())
}

func TestAddLine_ScanOrderAndDuplicates(t *testing.T) {
	x := NewInvertedIndex()
	x.AddLine("fox one", "a.txt", 0)
	x.AddLine("fox fox two", "a.txt", 1)
	x.AddLine("fox three", "b.txt", 0)

	occ, ok := x.Lookup("fox")
	require.True(t, ok)
	require.Len(t, occ, 4)
	assert.Equal(t, 0, occ[0].LineOffset)
	assert.Equal(t, 1, occ[1].LineOffset)
	assert.Same(t, occ[1], occ[2])
	assert.Equal(t, "b.txt", occ[3].Source)
}

func TestLookup_Missing(t *testing.T) {
	x := NewInvertedIndex()
	occ, ok := x.Lookup("ghost")
	assert.False(t, ok)
	assert.Nil(t, occ)
	assert.False(t, x.Contains("ghost"))
}

func TestLookup_AppendDoesNotAlias(t *testing.T) {
	x := NewInvertedIndex()
	x.AddLine("fox", "a.txt", 0)
	x.AddLine("fox", "a.txt", 1)

	occ, _ := x.Lookup("fox")
	_ = append(occ, &Occurrence{Sentence: "intruder"})

	again, _ := x.Lookup("fox")
	assert.Len(t, again, 2)
}

func TestUpsert_InvariantViolationsPanic(t *testing.T) {
	x := NewInvertedIndex()
	occ := &Occurrence{Sentence: "x"}

	assert.Panics(t, func() { x.Upsert("", occ) })
	assert.Panics(t, func() { x.Upsert("Fox", occ) })

	x.Seal()
	assert.True(t, x.Sealed())
	assert.Panics(t, func() { x.Upsert("fox", occ) })
	assert.Panics(t, func() { x.AddLine("fox", "a.txt", 0) })
}

func TestSnapshot_SortedAndDetached(t *testing.T) {
	x := NewInvertedIndex()
	x.AddLine("b a", "a.txt", 0)

	snap := x.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Term)
	assert.Equal(t, "b", snap[1].Term)

	snap[0].Occurrences[0] = nil
	occ, _ := x.Lookup("a")
	assert.NotNil(t, occ[0])
}

func BenchmarkAddLine(b *testing.B) {
	x := NewInvertedIndex()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		x.AddLine("this is a benchmark line with several words for the inverted index", "bench.txt", i)
	}
}
