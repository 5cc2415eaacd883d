package nanoql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coffersTech/nanotel/internal/pattern"
)

// Parse compiles a record filter. Terms written next to each other are joined
// with AND; NOT binds tighter than AND, which binds tighter than OR. Kind names
// are resolved against the event taxonomy here, so a misspelt kind is an error
// rather than a filter that silently matches nothing. A blank filter yields nil.
//
//	kind:SetupDataCallRequest id:0087
//	ts>=1700000000000 ts<"2024-03-01T10:00:30Z"
//	NOT (kind:Mms200Ok OR text:"cause=0")
func Parse(input string) (Node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, nil
	}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t.kind)
	}
	return n, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Offset: t.start, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) or() (Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.next()
		case tokWord, tokString, tokLParen, tokNot:
		default:
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
}

func (p *parser) unary() (Node, error) {
	if p.peek().kind != tokNot {
		return p.primary()
	}
	p.next()
	inner, err := p.unary()
	if err != nil {
		return nil, err
	}
	return Not{Expr: inner}, nil
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, p.errorf(c, "expected ')' to close offset %d, got %s", t.start, c.kind)
		}
		return n, nil
	case tokString:
		return Cond{Field: FieldAny, Op: OpContains, Text: t.text}, nil
	case tokWord:
		if p.peek().kind != tokCmp {
			return Cond{Field: FieldAny, Op: OpContains, Text: t.text}, nil
		}
		return p.condition(t)
	default:
		return nil, p.errorf(t, "expected a term, got %s", t.kind)
	}
}

func (p *parser) condition(key token) (Node, error) {
	field, ok := fieldNames[strings.ToLower(key.text)]
	if !ok {
		return nil, p.errorf(key, "unknown field %q", key.text)
	}
	opTok := p.next()
	op := opNames[opTok.text]
	if op.ordering() && field != FieldTime {
		return nil, p.errorf(opTok, "%s does not support %s", field, opTok.text)
	}
	val := p.next()
	if val.kind != tokWord && val.kind != tokString {
		return nil, p.errorf(val, "expected a value after %s%s, got %s", key.text, opTok.text, val.kind)
	}

	c := Cond{Field: field, Op: op}
	switch field {
	case FieldKind:
		k, ok := pattern.ParseKind(val.text)
		if !ok {
			return nil, p.errorf(val, "unknown event kind %q", val.text)
		}
		c.Kind = k
	case FieldTime:
		ms, err := parseInstant(val.text)
		if err != nil {
			return nil, p.errorf(val, "bad timestamp %q: want Unix ms or RFC 3339", val.text)
		}
		c.Millis = ms
	case FieldText:
		// Record text is free-form: text:x is a substring test.
		c.Text = val.text
		if op == OpEq {
			c.Op = OpContains
		}
	default:
		c.Text = val.text
	}
	return c, nil
}

func parseInstant(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
