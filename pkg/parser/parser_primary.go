package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/planwire/pkg/token"
)

// Primary expression parsing: literals, column refs, function calls.
//
// Grammar:
//
//	primary    → literal | column_ref | func_call | paren_expr | case_expr | cast_expr
//	literal    → NUMBER | STRING | TRUE | FALSE | NULL
//	column_ref → [table "."] column
//	func_call  → identifier "(" [DISTINCT] [expr_list | "*"] ")"

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case token.NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case token.STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case token.TRUE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "true"}

	case token.FALSE:
		p.nextToken()
		return &Literal{Type: LiteralBool, Value: "false"}

	case token.NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "null"}

	case token.CASE:
		return p.parseCaseExpr()

	case token.CAST:
		return p.parseCastExpr()

	case token.EXISTS:
		p.addError(fmt.Sprintf(ErrUnsupportedSyntax, "EXISTS"))
		return nil

	case token.IDENT:
		return p.parseIdentifierExpr()

	case token.LPAREN:
		return p.parseParenExpr()

	case token.STAR:
		// SELECT * context
		p.nextToken()
		return &StarExpr{}

	default:
		p.addError(fmt.Sprintf("unexpected token in expression: %s", p.token.Type))
		p.nextToken()
		return nil
	}
}

// parseIdentifierExpr parses an identifier which could be a column ref or function call.
func (p *Parser) parseIdentifierExpr() Expr {
	name := p.token.Literal
	p.nextToken()

	// Check if it's a function call
	if p.check(token.LPAREN) {
		return p.parseFuncCall(name)
	}

	// Qualified column reference: table.column or table.*
	if p.check(token.DOT) {
		return p.parseQualifiedColumnRef(name)
	}

	// Simple column reference
	return &ColumnRef{Column: name}
}

// parseQualifiedColumnRef parses a qualified column reference.
func (p *Parser) parseQualifiedColumnRef(table string) Expr {
	p.expect(token.DOT)

	// table.*
	if p.check(token.STAR) {
		p.nextToken()
		return &StarExpr{Table: table}
	}

	if !p.check(token.IDENT) {
		p.addError(fmt.Sprintf("expected column name after %q.", table))
		return nil
	}

	ref := &ColumnRef{Table: table, Column: p.token.Literal}
	p.nextToken()
	return ref
}

// parseFuncCall parses a function call.
func (p *Parser) parseFuncCall(name string) Expr {
	fn := &FuncCall{Name: strings.ToUpper(name)}

	p.expect(token.LPAREN)

	// Handle COUNT(*) or other aggregate(*)
	if p.check(token.STAR) {
		fn.Star = true
		p.nextToken()
	} else if !p.check(token.RPAREN) {
		// Check for DISTINCT
		if p.match(token.DISTINCT) {
			fn.Distinct = true
		}

		// Parse arguments
		for {
			arg := p.parseExpression()
			fn.Args = append(fn.Args, arg)

			if !p.match(token.COMMA) {
				break
			}
		}
	}

	p.expect(token.RPAREN)

	// Window functions are recognized but not representable downstream.
	if p.check(token.OVER) {
		p.addError(fmt.Sprintf(ErrUnsupportedSyntax, "window function (OVER)"))
		return nil
	}

	return fn
}

// parseParenExpr parses a parenthesized expression.
func (p *Parser) parseParenExpr() Expr {
	p.expect(token.LPAREN)

	if p.check(token.SELECT) || p.check(token.WITH) {
		p.addError(fmt.Sprintf(ErrUnsupportedSyntax, "scalar subquery"))
		return nil
	}

	expr := p.parseExpression()
	p.expect(token.RPAREN)
	return &ParenExpr{Expr: expr}
}

// parseCaseExpr parses a CASE expression.
func (p *Parser) parseCaseExpr() Expr {
	p.expect(token.CASE)
	c := &CaseExpr{}

	// Optional operand: CASE expr WHEN ...
	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
	}

	for p.match(token.WHEN) {
		when := WhenClause{Condition: p.parseExpression()}
		p.expect(token.THEN)
		when.Result = p.parseExpression()
		c.Whens = append(c.Whens, when)
	}

	if len(c.Whens) == 0 {
		p.addError("expected WHEN clause in CASE expression")
	}

	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
	}

	p.expect(token.END)
	return c
}

// parseCastExpr parses a CAST(expr AS type) expression.
func (p *Parser) parseCastExpr() Expr {
	p.expect(token.CAST)
	p.expect(token.LPAREN)

	cast := &CastExpr{Expr: p.parseExpression()}

	p.expect(token.AS)
	if p.check(token.IDENT) {
		cast.TypeName = strings.ToLower(p.token.Literal)
		p.nextToken()
	} else {
		p.addError("expected type name in CAST")
	}

	p.expect(token.RPAREN)
	return cast
}
