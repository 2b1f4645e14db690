package models

import "fmt"

// SearchRequest is a keyword query with pagination.
type SearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Validate ensures the request has a query and normalizes the limit.
// A non-positive limit becomes defaultLimit; the limit is capped at maxLimit.
func (r *SearchRequest) Validate(defaultLimit, maxLimit int) error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.Offset < 0 {
		return fmt.Errorf("offset must not be negative: %d", r.Offset)
	}
	if r.Limit <= 0 {
		r.Limit = defaultLimit
	}
	if maxLimit > 0 && r.Limit > maxLimit {
		r.Limit = maxLimit
	}
	return nil
}
