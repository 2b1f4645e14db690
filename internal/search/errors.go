package search

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned for requests that are malformed apart from
// query syntax, such as a negative offset.
var ErrInvalidRequest = errors.New("invalid search request")

// ConsistencyError means a matched document id has no stored fields. The
// generation is corrupt; the search is aborted rather than skipping the hit.
type ConsistencyError struct {
	Generation string
	DocID      uint32
	Err        error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("generation %s: document %d matched but has no stored fields: %v", e.Generation, e.DocID, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
