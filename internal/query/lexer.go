package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokQuoted
	tokField
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokMinus
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) display() string {
	switch t.kind {
	case tokEOF:
		return ""
	case tokQuoted:
		return `"` + t.text + `"`
	case tokField:
		return t.text + ":"
	}
	return t.text
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == '"' || r == ':'
}

// lex splits input into tokens. Unterminated quotes and empty field names
// are reported here.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '"':
			end := strings.IndexByte(input[i+1:], '"')
			if end < 0 {
				return nil, &SyntaxError{Token: input[i:], Pos: i, Reason: "unterminated quote"}
			}
			toks = append(toks, token{kind: tokQuoted, text: input[i+1 : i+1+end], pos: i})
			i += end + 2
		case r == ':':
			return nil, &SyntaxError{Token: ":", Pos: i, Reason: "empty field name"}
		case r == '-':
			toks = append(toks, token{kind: tokMinus, text: "-", pos: i})
			i++
		default:
			start := i
			for i < len(input) {
				r, size := utf8.DecodeRuneInString(input[i:])
				if isDelimiter(r) {
					break
				}
				i += size
			}
			word := input[start:i]
			if i < len(input) && input[i] == ':' {
				toks = append(toks, token{kind: tokField, text: word, pos: start})
				i++
				continue
			}
			kind := tokWord
			switch word {
			case "AND":
				kind = tokAnd
			case "OR":
				kind = tokOr
			case "NOT":
				kind = tokNot
			}
			toks = append(toks, token{kind: kind, text: word, pos: start})
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(input)}), nil
}
