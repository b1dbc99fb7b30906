package index

// Occurrence is one physical line in which a word appeared. It is created
// once per indexed line and shared by every word entry of that line.
type Occurrence struct {
	Sentence   string `json:"sentence"`
	Source     string `json:"source"`
	LineOffset int    `json:"line_offset"`
}

type OccurrenceList []*Occurrence

type TermEntry struct {
	Term        string
	Occurrences OccurrenceList
}
