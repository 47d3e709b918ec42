// Package parser provides SQL parsing for the ANSI core subset understood
// by the logical planner.
//
// # Usage
//
//	stmt, err := parser.Parse("SELECT a, b FROM t WHERE a > 1")
//	if err != nil {
//	    // handle error
//	}
//
// Scalar expressions can be parsed on their own, for example when an
// expression is bound to an externally supplied schema:
//
//	expr, err := parser.ParseExpr("a + b")
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for a subset of SQL:
//
//	statement     → SELECT [DISTINCT] select_list [FROM from_clause]
//	                [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	                [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//	from_clause   → table_ref {join}
//	table_ref     → identifier [[AS] alias] | "(" statement ")" [AS] alias
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/planwire/pkg/token"
)

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  token.Token // current token
	peek   token.Token // lookahead token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{
		lexer: NewLexer(sql),
	}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the SQL text as a SELECT statement and returns the AST.
func Parse(sql string) (*SelectStmt, error) {
	p := NewParser(sql)
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if !p.check(token.EOF) {
		return nil, p.errorAtCurrent(fmt.Sprintf("unexpected trailing input near %q", p.token.Literal))
	}
	return stmt, nil
}

// ParseExpr parses the SQL text as a single scalar expression.
func ParseExpr(sql string) (Expr, error) {
	p := NewParser(sql)
	expr := p.parseExpression()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if !p.check(token.EOF) {
		return nil, p.errorAtCurrent(fmt.Sprintf("unexpected trailing input near %q", p.token.Literal))
	}
	return expr, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token, recording lexical errors as they
// surface.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
	if p.peek.Type == token.ILLEGAL {
		p.errors = append(p.errors, &LexError{Pos: p.peek.Pos, Message: lexErrorMessage(p.peek.Literal)})
	}
}

// lexErrorMessage renders an ILLEGAL token's payload. Single characters
// are stray input; anything longer is already a message.
func lexErrorMessage(literal string) string {
	if len(literal) == 1 {
		return fmt.Sprintf("unexpected character %q", literal)
	}
	return literal
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it is of the given type.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, or records an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, t))
	return false
}

// addError records a parsing error at the current position.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{Pos: p.token.Pos, Message: msg})
}

// errorAtCurrent returns a parse error at the current position without
// recording it.
func (p *Parser) errorAtCurrent(msg string) error {
	return &ParseError{Pos: p.token.Pos, Message: msg}
}
