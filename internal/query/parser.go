package query

import "strings"

// Parse parses input into an expression tree. Any error is a *SyntaxError.
func Parse(input string) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SyntaxError{Pos: 0, Reason: "empty query"}
	}
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, field: DefaultField}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	switch t := p.peek(); t.kind {
	case tokEOF:
		return n, nil
	case tokRParen:
		return nil, p.errorAt(t, "unbalanced parenthesis")
	default:
		return nil, p.errorAt(t, "unexpected token")
	}
}

type parser struct {
	toks  []token
	pos   int
	field string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorAt(t token, reason string) error {
	return &SyntaxError{Token: t.display(), Pos: t.pos, Reason: reason}
}

// startsClause reports whether t can begin a unary expression.
func startsClause(t token) bool {
	switch t.kind {
	case tokWord, tokQuoted, tokField, tokLParen, tokNot, tokMinus:
		return true
	}
	return false
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	clauses := []Node{first}
	for {
		t := p.peek()
		if t.kind == tokOr {
			p.next()
			if !startsClause(p.peek()) {
				return nil, p.errorAt(t, "OR is missing its right operand")
			}
		} else if !startsClause(t) {
			break
		}
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, n)
	}
	if len(clauses) == 1 {
		return first, nil
	}
	return &Or{Clauses: clauses}, nil
}

func (p *parser) parseAnd() (Node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	clauses := []Node{first}
	for p.peek().kind == tokAnd {
		op := p.next()
		if !startsClause(p.peek()) {
			return nil, p.errorAt(op, "AND is missing its right operand")
		}
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, n)
	}
	if len(clauses) == 1 {
		return first, nil
	}
	return &And{Clauses: clauses}, nil
}

func (p *parser) parseUnary() (Node, error) {
	t := p.peek()
	if t.kind == tokNot || t.kind == tokMinus {
		p.next()
		if !startsClause(p.peek()) {
			return nil, p.errorAt(t, t.text+" is missing its operand")
		}
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Clause: n}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokWord:
		return &Term{Field: p.field, Text: t.text}, nil
	case tokQuoted:
		return &Term{Field: p.field, Text: t.text, Quoted: true}, nil
	case tokLParen:
		return p.parseGroup(t)
	case tokField:
		return p.parseFieldValue(t)
	case tokRParen:
		return nil, p.errorAt(t, "unbalanced parenthesis")
	case tokAnd, tokOr:
		return nil, p.errorAt(t, t.text+" is missing its left operand")
	case tokEOF:
		return nil, p.errorAt(t, "unexpected end of query")
	}
	return nil, p.errorAt(t, "unexpected token")
}

func (p *parser) parseGroup(open token) (Node, error) {
	if p.peek().kind == tokRParen {
		return nil, p.errorAt(open, "empty parentheses")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokRParen {
		return nil, p.errorAt(open, "unbalanced parenthesis")
	}
	p.next()
	return n, nil
}

func (p *parser) parseFieldValue(f token) (Node, error) {
	field := strings.ToLower(f.text)
	v := p.next()
	switch v.kind {
	case tokWord, tokAnd, tokOr, tokNot:
		// An operator keyword right after a field prefix is a literal value.
		return &Term{Field: field, Text: v.text}, nil
	case tokQuoted:
		return &Term{Field: field, Text: v.text, Quoted: true}, nil
	case tokLParen:
		outer := p.field
		p.field = field
		n, err := p.parseGroup(v)
		p.field = outer
		return n, err
	}
	return nil, p.errorAt(f, "missing value for field "+field)
}
