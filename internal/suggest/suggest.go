// Package suggest proposes spelling corrections for queries that match nothing,
// using the term dictionary of an index generation.
package suggest

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/query"
)

// Dictionary is the term dictionary of one generation. *index.Generation implements it.
type Dictionary interface {
	FieldTerms(field string) []index.DictEntry
	DocFreq(field, token string) int
}

// Suggestion is a candidate replacement for one token.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
}

// Suggester finds dictionary terms close to unknown query tokens.
type Suggester struct {
	analyzer    *analysis.Analyzer
	maxDistance int
	minFreq     int
}

// Option configures a Suggester.
type Option func(*Suggester)

// WithMaxDistance sets the largest edit distance a suggestion may have.
func WithMaxDistance(d int) Option {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores dictionary terms found in fewer than f documents.
func WithMinFrequency(f int) Option {
	return func(s *Suggester) {
		if f > 0 {
			s.minFreq = f
		}
	}
}

// New returns a Suggester. The analyzer must be the one the index was built with.
func New(analyzer *analysis.Analyzer, opts ...Option) *Suggester {
	s := &Suggester{
		analyzer:    analyzer,
		maxDistance: 2,
		minFreq:     1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns up to n dictionary terms of field near token, best first.
// Closer terms win, then more frequent ones, then the lexically smaller.
func (s *Suggester) Suggest(dict Dictionary, field, token string, n int) []Suggestion {
	limit := s.maxDistance
	tokenLen := utf8.RuneCountInString(token)
	if tokenLen <= 4 {
		limit = min(limit, 1)
	}

	var out []Suggestion
	for _, e := range dict.FieldTerms(field) {
		if e.Term == token || e.DocFreq < s.minFreq {
			continue
		}
		diff := utf8.RuneCountInString(e.Term) - tokenLen
		if diff > limit || -diff > limit {
			continue
		}
		d := Distance(token, e.Term)
		if d > limit {
			continue
		}
		out = append(out, Suggestion{
			Term:      e.Term,
			Distance:  d,
			Frequency: e.DocFreq,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Term < b.Term
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Correct returns n with every unknown token of its positive terms replaced
// by the best suggestion. Terms under NOT are left alone. ok is false when
// nothing was replaced.
func (s *Suggester) Correct(dict Dictionary, n query.Node) (query.Node, bool) {
	switch n := n.(type) {
	case *query.Term:
		return s.correctTerm(dict, n)
	case *query.And:
		clauses, ok := s.correctAll(dict, n.Clauses)
		if !ok {
			return n, false
		}
		return &query.And{Clauses: clauses}, true
	case *query.Or:
		clauses, ok := s.correctAll(dict, n.Clauses)
		if !ok {
			return n, false
		}
		return &query.Or{Clauses: clauses}, true
	}
	return n, false
}

func (s *Suggester) correctAll(dict Dictionary, nodes []query.Node) ([]query.Node, bool) {
	out := make([]query.Node, len(nodes))
	changed := false
	for i, c := range nodes {
		fixed, ok := s.Correct(dict, c)
		out[i] = fixed
		changed = changed || ok
	}
	return out, changed
}

func (s *Suggester) correctTerm(dict Dictionary, t *query.Term) (query.Node, bool) {
	tokens := s.analyzer.Terms(t.Text)
	changed := false
	for i, tok := range tokens {
		if dict.DocFreq(t.Field, tok) > 0 {
			continue
		}
		if best := s.Suggest(dict, t.Field, tok, 1); len(best) > 0 {
			tokens[i] = best[0].Term
			changed = true
		}
	}
	if !changed {
		return t, false
	}
	return &query.Term{
		Field:  t.Field,
		Text:   strings.Join(tokens, " "),
		Quoted: t.Quoted || len(tokens) > 1,
	}, true
}
