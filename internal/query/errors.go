package query

import "fmt"

// SyntaxError describes a query that cannot be parsed. Pos is the byte
// offset of Token in the query string.
type SyntaxError struct {
	Token  string
	Pos    int
	Reason string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("query syntax error at position %d: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("query syntax error at position %d near %q: %s", e.Pos, e.Token, e.Reason)
}
