package models

import "time"

// SearchHit is a single ranked result.
type SearchHit struct {
	Path   string       `json:"path"`
	Fields StoredFields `json:"fields,omitempty"`
	Score  float64      `json:"score"`
	DocID  uint32       `json:"doc_id"`
	Rank   int          `json:"rank"`
}

// SearchResponse is one page of results.
type SearchResponse struct {
	Hits       []*SearchHit `json:"hits"`
	Total      int          `json:"total"`
	Offset     int          `json:"offset"`
	Limit      int          `json:"limit"`
	Generation string       `json:"generation"`
	QueryTime  int64        `json:"query_time_ms"`
	Query      string       `json:"query"`
	Suggestion string       `json:"suggestion,omitempty"`
}

// Paths returns the path of every hit in rank order.
func (r *SearchResponse) Paths() []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.Path
	}
	return out
}

// FileFailure records a file that contributed no document to a build.
type FileFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// IndexStats reports the outcome of one indexing run.
type IndexStats struct {
	BuildID    string        `json:"build_id"`
	Generation string        `json:"generation"`
	Root       string        `json:"root"`
	Documents  int           `json:"documents"`
	Terms      int           `json:"terms"`
	Failed     int           `json:"failed"`
	Failures   []FileFailure `json:"failures,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}
