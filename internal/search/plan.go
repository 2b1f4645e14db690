package search

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/docsearch/internal/analysis"
	"github.com/hyperjump/docsearch/internal/index"
	"github.com/hyperjump/docsearch/internal/query"
)

// Reader is the view of a generation that query evaluation needs.
type Reader interface {
	Postings(field, token string) (index.PostingList, error)
	DocCount() int
	FieldLength(field string, id uint32) uint32
	AvgFieldLength(field string) float64
}

// plan is an analyzed query. eval returns matches sorted by doc id.
type plan interface {
	eval(ctx context.Context, r Reader) ([]candidate, error)
	String() string
}

type termPlan struct {
	field  string
	tokens []string
}

type andPlan struct{ clauses []plan }

type orPlan struct{ clauses []plan }

type notPlan struct{ clause plan }

// allPlan matches every document with score zero. It stands in for the
// negation of a clause that analyzed to nothing.
type allPlan struct{}

// compile analyzes the terms of n. Terms that analyze to nothing (stop
// words, punctuation) drop out of their enclosing clause; nil means the
// whole query dropped out. NOT over a dropped clause excludes nothing and
// so matches every document.
func compile(n query.Node, an *analysis.Analyzer) plan {
	switch n := n.(type) {
	case *query.Term:
		tokens := an.Terms(n.Text)
		if len(tokens) == 0 {
			return nil
		}
		return &termPlan{field: n.Field, tokens: tokens}
	case *query.And:
		clauses := compileAll(n.Clauses, an)
		switch len(clauses) {
		case 0:
			return nil
		case 1:
			return clauses[0]
		}
		return &andPlan{clauses: clauses}
	case *query.Or:
		clauses := compileAll(n.Clauses, an)
		switch len(clauses) {
		case 0:
			return nil
		case 1:
			return clauses[0]
		}
		return &orPlan{clauses: clauses}
	case *query.Not:
		inner := compile(n.Clause, an)
		if inner == nil {
			return allPlan{}
		}
		return &notPlan{clause: inner}
	}
	return nil
}

func compileAll(nodes []query.Node, an *analysis.Analyzer) []plan {
	out := make([]plan, 0, len(nodes))
	for _, c := range nodes {
		if p := compile(c, an); p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (t *termPlan) String() string {
	quoted := make([]string, len(t.tokens))
	for i, tok := range t.tokens {
		quoted[i] = strconv.Quote(tok)
	}
	return t.field + ":[" + strings.Join(quoted, " ") + "]"
}

func (a *andPlan) String() string { return groupString("AND", a.clauses) }
func (o *orPlan) String() string  { return groupString("OR", o.clauses) }
func (n *notPlan) String() string { return "(NOT " + n.clause.String() + ")" }
func (allPlan) String() string    { return "(ALL)" }

func groupString(op string, clauses []plan) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.String()
	}
	return "(" + op + " " + strings.Join(parts, " ") + ")"
}

// eval scores every token with BM25 and keeps documents containing all of them.
func (t *termPlan) eval(ctx context.Context, r Reader) ([]candidate, error) {
	n := r.DocCount()
	avg := r.AvgFieldLength(t.field)
	var acc []candidate
	for i, tok := range t.tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pl, err := r.Postings(t.field, tok)
		if err != nil {
			return nil, err
		}
		if len(pl) == 0 {
			return nil, nil
		}
		w := idf(n, len(pl))
		scored := make([]candidate, len(pl))
		for j, p := range pl {
			scored[j] = candidate{
				id:    p.DocID,
				score: w * tfNorm(p.Freq, r.FieldLength(t.field, p.DocID), avg),
			}
		}
		if i == 0 {
			acc = scored
			continue
		}
		acc = intersect(acc, scored)
		if len(acc) == 0 {
			return nil, nil
		}
	}
	return acc, nil
}

func (a *andPlan) eval(ctx context.Context, r Reader) ([]candidate, error) {
	var acc []candidate
	for i, c := range a.clauses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.eval(ctx, r)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = res
		} else {
			acc = intersect(acc, res)
		}
		if len(acc) == 0 {
			return nil, nil
		}
	}
	return acc, nil
}

func (o *orPlan) eval(ctx context.Context, r Reader) ([]candidate, error) {
	scores := make(map[uint32]float64)
	for _, c := range o.clauses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.eval(ctx, r)
		if err != nil {
			return nil, err
		}
		// Clause order fixes the order of additions per document.
		for _, m := range res {
			scores[m.id] += m.score
		}
	}
	out := make([]candidate, 0, len(scores))
	for id, s := range scores {
		out = append(out, candidate{id: id, score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

// eval returns every document the clause does not match, with score zero.
func (n *notPlan) eval(ctx context.Context, r Reader) ([]candidate, error) {
	res, err := n.clause.eval(ctx, r)
	if err != nil {
		return nil, err
	}
	total := r.DocCount()
	out := make([]candidate, 0, total-len(res))
	j := 0
	for id := 0; id < total; id++ {
		if j < len(res) && res[j].id == uint32(id) {
			j++
			continue
		}
		out = append(out, candidate{id: uint32(id)})
	}
	return out, nil
}

func (allPlan) eval(ctx context.Context, r Reader) ([]candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := r.DocCount()
	out := make([]candidate, total)
	for id := range out {
		out[id].id = uint32(id)
	}
	return out, nil
}

// intersect keeps ids present in both sorted lists, summing a's score then b's.
func intersect(a, b []candidate) []candidate {
	out := make([]candidate, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].id < b[j].id:
			i++
		case a[i].id > b[j].id:
			j++
		default:
			out = append(out, candidate{id: a[i].id, score: a[i].score + b[j].score})
			i++
			j++
		}
	}
	return out
}
