// Package query parses keyword queries into boolean expression trees.
//
// Grammar, loosest binding first:
//
//	or      := and { [OR] and }
//	and     := unary { AND unary }
//	unary   := (NOT | "-") unary | primary
//	primary := "(" or ")" | field ":" (word | quoted | "(" or ")") | word | quoted
//
// Clauses placed side by side are OR'd. Operators are upper case only;
// "and" is an ordinary word. Unqualified terms search the body field.
package query

import (
	"strconv"
	"strings"

	"github.com/hyperjump/docsearch/internal/models"
)

// DefaultField is searched by terms without a field prefix.
const DefaultField = models.FieldBody

// Node is a parsed query expression. String returns a canonical form:
// equal strings mean equal queries.
type Node interface {
	String() string
	node()
}

// Term matches documents containing every token of Text in Field.
type Term struct {
	Field  string
	Text   string
	Quoted bool
}

// And matches documents matched by all clauses.
type And struct {
	Clauses []Node
}

// Or matches documents matched by any clause.
type Or struct {
	Clauses []Node
}

// Not matches documents not matched by Clause.
type Not struct {
	Clause Node
}

func (*Term) node() {}
func (*And) node()  {}
func (*Or) node()   {}
func (*Not) node()  {}

func (t *Term) String() string {
	return t.Field + ":" + strconv.Quote(t.Text)
}

func (a *And) String() string { return group("AND", a.Clauses) }

func (o *Or) String() string { return group("OR", o.Clauses) }

func (n *Not) String() string { return "(NOT " + n.Clause.String() + ")" }

func group(op string, clauses []Node) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(op)
	for _, c := range clauses {
		b.WriteByte(' ')
		b.WriteString(c.String())
	}
	b.WriteString(")")
	return b.String()
}
