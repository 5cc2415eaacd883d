package nanoql

import (
	"strings"

	"github.com/coffersTech/nanotel/internal/pattern"
)

// Record is what a filter can see of a log record.
type Record interface {
	UnixMilli() int64
	Text() string
	MessageID() string
	// HasKind reports whether the Pattern Matcher tags the record with k.
	HasKind(k pattern.Kind) bool
}

// Match reports whether rec passes the filter. A nil filter passes everything.
// AND and OR short-circuit, so kind tests after a failing term cost nothing.
func Match(n Node, rec Record) bool {
	switch n := n.(type) {
	case nil:
		return true
	case And:
		return Match(n.Left, rec) && Match(n.Right, rec)
	case Or:
		return Match(n.Left, rec) || Match(n.Right, rec)
	case Not:
		return !Match(n.Expr, rec)
	case Cond:
		return n.eval(rec)
	default:
		return false
	}
}

func (c Cond) eval(rec Record) bool {
	switch c.Field {
	case FieldAny:
		return containsFold(rec.Text(), c.Text) || containsFold(rec.MessageID(), c.Text)
	case FieldText:
		return containsFold(rec.Text(), c.Text) != (c.Op == OpNeq)
	case FieldID:
		return strings.EqualFold(rec.MessageID(), c.Text) != (c.Op == OpNeq)
	case FieldKind:
		return rec.HasKind(c.Kind) != (c.Op == OpNeq)
	case FieldTime:
		return compare(rec.UnixMilli(), c.Op, c.Millis)
	}
	return false
}

func compare(v int64, op Op, ref int64) bool {
	switch op {
	case OpEq:
		return v == ref
	case OpNeq:
		return v != ref
	case OpLt:
		return v < ref
	case OpLe:
		return v <= ref
	case OpGt:
		return v > ref
	case OpGe:
		return v >= ref
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
