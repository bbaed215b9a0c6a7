package condition

import (
	"errors"
	"fmt"
)

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) accept(kind tokenKind) bool {
	if p.done() || p.tokens[p.pos].kind != kind {
		return false
	}
	p.pos++
	return true
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.accept(tokAnd) {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.accept(tokNot) {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.accept(tokLParen) {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokRParen) {
			return nil, errors.New("condition: missing ')'")
		}
		return inner, nil
	}

	if p.done() {
		return nil, errors.New("condition: unexpected end of expression")
	}
	ident := p.peek()
	if ident.kind != tokIdent {
		return nil, fmt.Errorf("condition: expected field name, got %q", ident.text)
	}
	p.pos++

	op := p.peek()
	switch op.kind {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte:
		p.pos++
	default:
		return truthyNode{ident.text}, nil
	}

	if p.done() {
		return nil, fmt.Errorf("condition: missing value after %q", op.text)
	}
	lit := p.peek()
	p.pos++
	switch lit.kind {
	case tokString, tokNumber, tokBool, tokNull:
	case tokIdent:
		// Unquoted words compare as strings.
		lit.kind = tokString
	default:
		return nil, fmt.Errorf("condition: expected value, got %q", lit.text)
	}
	if isOrdering(op.kind) && lit.kind != tokNumber {
		return nil, fmt.Errorf("condition: %q needs a number, got %q", op.text, lit.text)
	}
	return compareNode{field: ident.text, op: op.kind, lit: lit}, nil
}

func isOrdering(kind tokenKind) bool {
	return kind == tokLt || kind == tokLte || kind == tokGt || kind == tokGte
}
