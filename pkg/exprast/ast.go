// Package exprast is a minimal s-expression representation for the pipe
// descriptor and its hoisted runtime expressions: a small host AST just
// big enough to express nested calls and keyword arguments, not a full
// schema language.
package exprast

import "fmt"

// Position is a 1-based line/column location in the source text, in the
// teacher's pkg/schema/lexer.go idiom.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ExprKind distinguishes the four Expr shapes.
type ExprKind int

const (
	KindIdent ExprKind = iota
	KindInt
	KindStr
	KindList
)

func (k ExprKind) String() string {
	switch k {
	case KindIdent:
		return "ident"
	case KindInt:
		return "int"
	case KindStr:
		return "str"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Expr is one node of the s-expression tree.
type Expr struct {
	Kind ExprKind
	Pos  Position

	Ident string  // KindIdent
	Int   int64   // KindInt
	Str   string  // KindStr
	Items []Expr  // KindList
}

// Head returns the first element of a List Expr if it is an Ident, which by
// convention names the form (e.g. "std.stream.pipe_v1"). Ok is false if e
// is not a non-empty List whose first element is an Ident.
func (e Expr) Head() (name string, ok bool) {
	if e.Kind != KindList || len(e.Items) == 0 {
		return "", false
	}
	if e.Items[0].Kind != KindIdent {
		return "", false
	}
	return e.Items[0].Ident, true
}

// Args returns the elements of a List Expr after its head.
func (e Expr) Args() []Expr {
	if e.Kind != KindList || len(e.Items) == 0 {
		return nil
	}
	return e.Items[1:]
}

// IsKV reports whether e is a `kv` node: List{Ident("kv"), Ident(name), value}.
func (e Expr) IsKV() (name string, value Expr, ok bool) {
	if e.Kind != KindList || len(e.Items) != 3 {
		return "", Expr{}, false
	}
	if e.Items[0].Kind != KindIdent || e.Items[0].Ident != "kv" {
		return "", Expr{}, false
	}
	if e.Items[1].Kind != KindIdent {
		return "", Expr{}, false
	}
	return e.Items[1].Ident, e.Items[2], true
}

// Ident builds an Ident Expr — convenience constructor mainly used by tests
// that hand-author Expr literals instead of parsing source text.
func Ident(name string) Expr { return Expr{Kind: KindIdent, Ident: name} }

// IntLit builds an Int Expr.
func IntLit(v int64) Expr { return Expr{Kind: KindInt, Int: v} }

// StrLit builds a Str Expr.
func StrLit(v string) Expr { return Expr{Kind: KindStr, Str: v} }

// List builds a List Expr from the given items, conventionally headed by an
// Ident naming the form.
func List(items ...Expr) Expr { return Expr{Kind: KindList, Items: items} }

// KV builds a `kv` node: name: value.
func KV(name string, value Expr) Expr {
	return List(Ident("kv"), Ident(name), value)
}
