package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventZeroResult EventType = "zero_result"
	EventFuzzy      EventType = "fuzzy"
)

type SearchEvent struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	Words        []string  `json:"words"`
	UnknownWords []string  `json:"unknown_words,omitempty"`
	TotalHits    int       `json:"total_hits"`
	Returned     int       `json:"returned"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	Surface      string    `json:"surface"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// Classify picks the most specific type for an event: zero results first,
// then a cache hit, then a fuzzy fallback.
func Classify(totalHits int, cacheHit bool, unknownWords int) EventType {
	switch {
	case totalHits == 0:
		return EventZeroResult
	case cacheHit:
		return EventCacheHit
	case unknownWords > 0:
		return EventFuzzy
	default:
		return EventSearch
	}
}
