package nanoql

import "github.com/coffersTech/nanotel/internal/pattern"

// Field is the record attribute a condition looks at.
type Field int

const (
	// FieldAny is a bare search term, matched against text and message id.
	FieldAny Field = iota
	FieldText
	FieldID
	FieldKind
	FieldTime
)

var fieldNames = map[string]Field{
	"text":       FieldText,
	"msg":        FieldText,
	"message":    FieldText,
	"id":         FieldID,
	"message_id": FieldID,
	"serial":     FieldID,
	"kind":       FieldKind,
	"event":      FieldKind,
	"ts":         FieldTime,
	"timestamp":  FieldTime,
}

func (f Field) String() string {
	switch f {
	case FieldText:
		return "text"
	case FieldID:
		return "id"
	case FieldKind:
		return "kind"
	case FieldTime:
		return "ts"
	default:
		return "any"
	}
}

// Op is a comparison operator.
type Op int

const (
	OpContains Op = iota
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
)

var opNames = map[string]Op{
	":":  OpEq,
	"=":  OpEq,
	"!=": OpNeq,
	"<":  OpLt,
	"<=": OpLe,
	">":  OpGt,
	">=": OpGe,
}

func (o Op) ordering() bool {
	return o >= OpLt
}

// Node is a filter expression.
type Node interface {
	node()
}

type And struct{ Left, Right Node }

type Or struct{ Left, Right Node }

type Not struct{ Expr Node }

// Cond tests a single field. Only the value slot matching Field is set:
// Kind for FieldKind, Millis for FieldTime, Text otherwise.
type Cond struct {
	Field  Field
	Op     Op
	Text   string
	Kind   pattern.Kind
	Millis int64
}

func (And) node()  {}
func (Or) node()   {}
func (Not) node()  {}
func (Cond) node() {}
