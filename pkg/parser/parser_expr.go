package parser

import "github.com/leapstack-labs/planwire/pkg/token"

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	precedenceNone       = 0
//	precedenceOr         = 1
//	precedenceAnd        = 2
//	precedenceNot        = 3
//	precedenceComparison = 4  (=, !=, <, >, <=, >=, IS, IN, BETWEEN, LIKE)
//	precedenceAddition   = 5  (+, -, ||)
//	precedenceMultiply   = 6  (*, /, %)
//	precedenceUnary      = 7  (-, +, NOT)

const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedenceUnary
)

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	// Parse prefix (unary operators and primary expressions)
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	// Parse infix operators while their precedence is >= minPrecedence
	for {
		prec := p.infixPrecedence(p.token.Type)
		if prec < minPrecedence {
			break
		}

		left = p.parseInfixExpr(left, prec)
		if left == nil {
			break
		}
	}

	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceNot)
		return &UnaryExpr{Op: token.NOT, Expr: expr}

	case token.MINUS:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		return &UnaryExpr{Op: token.MINUS, Expr: expr}

	case token.PLUS:
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precedenceUnary)
		return &UnaryExpr{Op: token.PLUS, Expr: expr}

	default:
		return p.parsePrimary()
	}
}

// infixPrecedence returns the precedence of a token as an infix operator.
// Returns precedenceNone if the token is not an infix operator.
func (p *Parser) infixPrecedence(t token.TokenType) int {
	switch t {
	case token.OR:
		return precedenceOr
	case token.AND:
		return precedenceAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE:
		return precedenceComparison
	case token.IS, token.IN, token.BETWEEN, token.LIKE:
		return precedenceComparison
	case token.NOT:
		// NOT as infix (for NOT IN, NOT LIKE, NOT BETWEEN)
		return precedenceComparison
	case token.PLUS, token.MINUS, token.DPIPE:
		return precedenceAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precedenceMultiply
	default:
		return precedenceNone
	}
}

// parseInfixExpr parses an infix expression given the left operand and current precedence.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	// Handle special infix operators first
	switch p.token.Type {
	case token.NOT:
		// NOT IN, NOT BETWEEN, NOT LIKE
		return p.parseNotInfixExpr(left)

	case token.IS:
		return p.parseIsExpr(left)

	case token.IN:
		p.nextToken()
		return p.parseInExpr(left, false)

	case token.BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, false)

	case token.LIKE:
		p.nextToken()
		return p.parseLikeExpr(left, false)
	}

	// Standard binary operators
	op := p.token
	p.nextToken()

	// Parse right operand with higher precedence (left-associative)
	right := p.parseExpressionWithPrecedence(prec + 1)

	return &BinaryExpr{Left: left, Op: op.Type, Right: right}
}

// parseNotInfixExpr handles NOT as an infix modifier (NOT IN, NOT BETWEEN, NOT LIKE).
func (p *Parser) parseNotInfixExpr(left Expr) Expr {
	p.nextToken() // consume NOT

	switch p.token.Type {
	case token.IN:
		p.nextToken()
		return p.parseInExpr(left, true)

	case token.BETWEEN:
		p.nextToken()
		return p.parseBetweenExpr(left, true)

	case token.LIKE:
		p.nextToken()
		return p.parseLikeExpr(left, true)

	default:
		p.addError("expected IN, BETWEEN, or LIKE after NOT")
		return left
	}
}

// parseIsExpr parses IS [NOT] NULL / IS [NOT] TRUE / IS [NOT] FALSE.
func (p *Parser) parseIsExpr(left Expr) Expr {
	p.nextToken() // consume IS

	isNot := p.match(token.NOT)

	switch p.token.Type {
	case token.NULL:
		p.nextToken()
		return &IsNullExpr{Expr: left, Not: isNot}

	case token.TRUE:
		p.nextToken()
		eq := &BinaryExpr{Left: left, Op: token.EQ, Right: &Literal{Type: LiteralBool, Value: "true"}}
		if isNot {
			return &UnaryExpr{Op: token.NOT, Expr: eq}
		}
		return eq

	case token.FALSE:
		p.nextToken()
		eq := &BinaryExpr{Left: left, Op: token.EQ, Right: &Literal{Type: LiteralBool, Value: "false"}}
		if isNot {
			return &UnaryExpr{Op: token.NOT, Expr: eq}
		}
		return eq

	default:
		p.addError("expected NULL, TRUE, or FALSE after IS")
		return left
	}
}

// parseInExpr parses an IN expression over a value list.
func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	p.expect(token.LPAREN)

	if p.check(token.SELECT) || p.check(token.WITH) {
		p.addError("IN subqueries are not supported")
		return left
	}

	in := &InExpr{Expr: left, Not: not, Values: p.parseExpressionList()}
	p.expect(token.RPAREN)
	return in
}

// parseBetweenExpr parses a BETWEEN expression.
func (p *Parser) parseBetweenExpr(left Expr, not bool) Expr {
	between := &BetweenExpr{Expr: left, Not: not}
	// Parse low bound at addition precedence to avoid capturing AND
	between.Low = p.parseExpressionWithPrecedence(precedenceAddition)
	p.expect(token.AND)
	between.High = p.parseExpressionWithPrecedence(precedenceAddition)
	return between
}

// parseLikeExpr parses a LIKE expression.
func (p *Parser) parseLikeExpr(left Expr, not bool) Expr {
	like := &LikeExpr{Expr: left, Not: not}
	// Parse pattern at addition precedence
	like.Pattern = p.parseExpressionWithPrecedence(precedenceAddition)
	return like
}
