package query

import "strings"

// Format renders n back into query syntax. Parsing the result yields a
// tree with the same String as n.
func Format(n Node) string {
	var b strings.Builder
	format(&b, n, nil)
	return b.String()
}

func format(b *strings.Builder, n Node, parent Node) {
	switch n := n.(type) {
	case *Term:
		if n.Field != DefaultField {
			b.WriteString(n.Field)
			b.WriteByte(':')
		}
		text := strings.ReplaceAll(n.Text, `"`, " ")
		if n.Quoted || !plainWord(text) {
			b.WriteString(`"` + text + `"`)
		} else {
			b.WriteString(text)
		}
	case *And:
		formatGroup(b, " AND ", n.Clauses, n, needsParens(n, parent))
	case *Or:
		formatGroup(b, " OR ", n.Clauses, n, needsParens(n, parent))
	case *Not:
		b.WriteString("NOT ")
		format(b, n.Clause, n)
	}
}

func formatGroup(b *strings.Builder, sep string, clauses []Node, self Node, parens bool) {
	if parens {
		b.WriteByte('(')
	}
	for i, c := range clauses {
		if i > 0 {
			b.WriteString(sep)
		}
		format(b, c, self)
	}
	if parens {
		b.WriteByte(')')
	}
}

// needsParens keeps nested groups nested: only an AND directly under an OR
// binds tightly enough to go bare.
func needsParens(n, parent Node) bool {
	if parent == nil {
		return false
	}
	_, isAnd := n.(*And)
	_, parentOr := parent.(*Or)
	return !(isAnd && parentOr)
}

func plainWord(s string) bool {
	if s == "" || s[0] == '-' {
		return false
	}
	switch s {
	case "AND", "OR", "NOT":
		return false
	}
	return !strings.ContainsFunc(s, isDelimiter)
}
