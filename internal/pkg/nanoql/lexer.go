package nanoql

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokCmp
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of filter"
	case tokWord:
		return "word"
	case tokString:
		return "string"
	case tokCmp:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	default:
		return "NOT"
	}
}

type token struct {
	kind  tokenKind
	text  string
	start int
}

// SyntaxError reports where a filter stopped making sense.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter: %s at offset %d", e.Msg, e.Offset)
}

// lex splits a filter into tokens up front, so the parser can look ahead freely.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ':' || c == '=':
			toks = append(toks, token{tokCmp, string(c), i})
			i++
		case c == '!' || c == '<' || c == '>':
			n := 1
			if i+1 < len(input) && input[i+1] == '=' {
				n = 2
			}
			op := input[i : i+n]
			if op == "!" {
				return nil, &SyntaxError{i, "'!' must be followed by '='"}
			}
			toks = append(toks, token{tokCmp, op, i})
			i += n
		case c == '"':
			s, next, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, s, i})
			i = next
		case isWordByte(c):
			j := i
			for j < len(input) && isWordByte(input[j]) {
				j++
			}
			toks = append(toks, keyword(input[i:j], i))
			i = j
		default:
			return nil, &SyntaxError{i, fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(toks, token{tokEOF, "", len(input)}), nil
}

func lexString(input string, open int) (string, int, error) {
	var b strings.Builder
	for i := open + 1; i < len(input); i++ {
		switch input[i] {
		case '\\':
			if i+1 < len(input) {
				i++
				b.WriteByte(input[i])
			}
		case '"':
			return b.String(), i + 1, nil
		default:
			b.WriteByte(input[i])
		}
	}
	return "", 0, &SyntaxError{open, "unterminated string"}
}

func keyword(word string, start int) token {
	switch strings.ToUpper(word) {
	case "AND":
		return token{tokAnd, "AND", start}
	case "OR":
		return token{tokOr, "OR", start}
	case "NOT":
		return token{tokNot, "NOT", start}
	}
	return token{tokWord, word, start}
}

// Message ids are bare digits and kinds are CamelCase, so words mix both.
func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.' || c == '+'
}
