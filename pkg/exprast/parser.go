package exprast

import (
	"fmt"
	"strconv"
)

// ParseError carries a Position, in the teacher's pkg/schema parser idiom.
type ParseError struct {
	Pos Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("exprast: %s: %s", e.Pos, e.Msg)
}

// Parser turns source text into an Expr tree. A `name: value` pair is
// parsed into a `kv` List node (see KV) so that both positional and keyword
// arguments uniformly appear as list elements.
type Parser struct {
	lex *lexer
	cur token
}

// NewParser creates a Parser over input.
func NewParser(input string) *Parser {
	p := &Parser{lex: newLexer(input)}
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.lex.next()
}

// Parse reads exactly one top-level Expr and returns it, erroring if
// trailing non-EOF tokens remain.
func (p *Parser) Parse() (Expr, error) {
	e, err := p.parseExpr()
	if err != nil {
		return Expr{}, err
	}
	if p.cur.typ != tokEOF {
		return Expr{}, &ParseError{Pos: p.cur.pos, Msg: fmt.Sprintf("unexpected trailing token %q", p.cur.value)}
	}
	return e, nil
}

func (p *Parser) parseExpr() (Expr, error) {
	switch p.cur.typ {
	case tokLParen:
		return p.parseList()
	case tokIdent:
		return p.parseIdentOrKV()
	case tokInt:
		return p.parseInt()
	case tokString:
		return p.parseString()
	case tokError:
		return Expr{}, &ParseError{Pos: p.cur.pos, Msg: p.cur.value}
	default:
		return Expr{}, &ParseError{Pos: p.cur.pos, Msg: fmt.Sprintf("unexpected token %q", p.cur.value)}
	}
}

func (p *Parser) parseList() (Expr, error) {
	pos := p.cur.pos
	p.advance() // consume '('
	var items []Expr
	for p.cur.typ != tokRParen {
		if p.cur.typ == tokEOF {
			return Expr{}, &ParseError{Pos: p.cur.pos, Msg: "unterminated list, expected ')'"}
		}
		item, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}
		items = append(items, item)
	}
	p.advance() // consume ')'
	return Expr{Kind: KindList, Pos: pos, Items: items}, nil
}

func (p *Parser) parseIdentOrKV() (Expr, error) {
	pos := p.cur.pos
	name := p.cur.value
	p.advance()
	if p.cur.typ == tokColon {
		p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}
		return KV(name, value), nil
	}
	return Expr{Kind: KindIdent, Pos: pos, Ident: name}, nil
}

func (p *Parser) parseInt() (Expr, error) {
	pos := p.cur.pos
	v, err := strconv.ParseInt(p.cur.value, 10, 64)
	if err != nil {
		return Expr{}, &ParseError{Pos: pos, Msg: fmt.Sprintf("invalid integer literal %q: %v", p.cur.value, err)}
	}
	p.advance()
	return Expr{Kind: KindInt, Pos: pos, Int: v}, nil
}

func (p *Parser) parseString() (Expr, error) {
	pos := p.cur.pos
	v := p.cur.value
	p.advance()
	return Expr{Kind: KindStr, Pos: pos, Str: v}, nil
}

// Parse is a convenience wrapper around NewParser(input).Parse().
func Parse(input string) (Expr, error) {
	return NewParser(input).Parse()
}
