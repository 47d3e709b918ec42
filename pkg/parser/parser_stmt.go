package parser

import (
	"fmt"

	"github.com/leapstack-labs/planwire/pkg/token"
)

// Statement parsing: SELECT core, SELECT list, FROM clause, ORDER BY.
//
// Grammar:
//
//	statement   → SELECT [DISTINCT|ALL] select_list
//	              [FROM from_clause]
//	              [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	              [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//	select_list → select_item ("," select_item)*
//	select_item → "*" | table "." "*" | expr [AS identifier]
//	order_list  → order_item ("," order_item)*
//	order_item  → expr [ASC|DESC] [NULLS FIRST|LAST]
//
// WITH clauses and set operations are recognized and rejected with a named
// error so callers see what construct was refused rather than a generic
// syntax failure.

// parseStatement parses a complete SELECT statement.
func (p *Parser) parseStatement() *SelectStmt {
	if p.check(token.WITH) {
		p.addError(fmt.Sprintf(ErrUnsupportedSyntax, "WITH clause"))
		return nil
	}

	p.expect(token.SELECT)
	stmt := &SelectStmt{}

	// DISTINCT / ALL
	if p.match(token.DISTINCT) {
		stmt.Distinct = true
	} else {
		p.match(token.ALL) // optional, consume if present
	}

	// SELECT list
	stmt.Columns = p.parseSelectList()

	// FROM clause (optional: SELECT 1 is a valid statement)
	if p.match(token.FROM) {
		stmt.From = p.parseFromClause()
	}

	// WHERE
	if p.match(token.WHERE) {
		stmt.Where = p.parseExpression()
	}

	// GROUP BY
	if p.check(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		stmt.GroupBy = p.parseExpressionList()
	}

	// HAVING
	if p.match(token.HAVING) {
		stmt.Having = p.parseExpression()
	}

	// ORDER BY
	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		stmt.OrderBy = p.parseOrderByList()
	}

	// LIMIT / OFFSET
	if p.match(token.LIMIT) {
		stmt.Limit = p.parseExpression()
	}
	if p.match(token.OFFSET) {
		stmt.Offset = p.parseExpression()
	}

	// Set operations are recognized but not representable downstream.
	if p.check(token.UNION) || p.check(token.INTERSECT) || p.check(token.EXCEPT) {
		p.addError(fmt.Sprintf(ErrUnsupportedSyntax, fmt.Sprintf("set operation %s", p.token.Type)))
		return nil
	}

	return stmt
}

// parseSelectList parses the SELECT column list.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem

	for {
		items = append(items, p.parseSelectItem())

		if !p.match(token.COMMA) {
			break
		}
	}

	return items
}

// parseSelectItem parses a single item in the SELECT list.
func (p *Parser) parseSelectItem() SelectItem {
	// SELECT *
	if p.check(token.STAR) {
		p.nextToken()
		return SelectItem{Star: true}
	}

	// SELECT t.* shows up as an identifier followed by ".*"
	if p.check(token.IDENT) && p.checkPeek(token.DOT) {
		expr := p.parseExpression()
		if star, ok := expr.(*StarExpr); ok {
			return SelectItem{TableStar: star.Table}
		}
		return p.finishSelectItem(expr)
	}

	return p.finishSelectItem(p.parseExpression())
}

// finishSelectItem consumes an optional alias after an expression.
func (p *Parser) finishSelectItem(expr Expr) SelectItem {
	item := SelectItem{Expr: expr}

	if p.match(token.AS) {
		if p.check(token.IDENT) {
			item.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias after AS")
		}
	} else if p.check(token.IDENT) {
		// Implicit alias: SELECT a b
		item.Alias = p.token.Literal
		p.nextToken()
	}

	return item
}

// parseFromClause parses the FROM clause with optional joins.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{
		Source: p.parseTableRef(),
	}

	for {
		join, ok := p.parseJoin()
		if !ok {
			break
		}
		from.Joins = append(from.Joins, join)
	}

	return from
}

// parseTableRef parses a table name or derived table.
func (p *Parser) parseTableRef() TableRef {
	// Derived table: ( SELECT ... ) [AS] alias
	if p.check(token.LPAREN) {
		p.nextToken()
		sub := p.parseStatement()
		p.expect(token.RPAREN)

		derived := &DerivedTable{Select: sub}
		p.match(token.AS)
		if p.check(token.IDENT) {
			derived.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias for derived table")
		}
		return derived
	}

	if !p.check(token.IDENT) {
		p.addError(fmt.Sprintf("expected table name, got %s", p.token.Type))
		return nil
	}

	tbl := &TableName{Name: p.token.Literal}
	p.nextToken()

	// Optional alias
	if p.match(token.AS) {
		if p.check(token.IDENT) {
			tbl.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias after AS")
		}
	} else if p.check(token.IDENT) {
		tbl.Alias = p.token.Literal
		p.nextToken()
	}

	return tbl
}

// parseJoin parses a single join clause. Returns false when the current
// token does not start a join.
func (p *Parser) parseJoin() (*Join, bool) {
	join := &Join{Type: JoinInner}

	switch p.token.Type {
	case token.JOIN:
		p.nextToken()
	case token.INNER:
		p.nextToken()
		p.expect(token.JOIN)
	case token.LEFT:
		join.Type = JoinLeft
		p.nextToken()
		p.match(token.OUTER)
		p.expect(token.JOIN)
	case token.RIGHT:
		join.Type = JoinRight
		p.nextToken()
		p.match(token.OUTER)
		p.expect(token.JOIN)
	case token.FULL:
		join.Type = JoinFull
		p.nextToken()
		p.match(token.OUTER)
		p.expect(token.JOIN)
	case token.CROSS:
		join.Type = JoinCross
		p.nextToken()
		p.expect(token.JOIN)
	case token.COMMA:
		// Implicit cross join: FROM a, b
		join.Type = JoinCross
		p.nextToken()
	default:
		return nil, false
	}

	join.Right = p.parseTableRef()

	// ON condition (CROSS JOIN takes none)
	if join.Type != JoinCross {
		if p.expect(token.ON) {
			join.Condition = p.parseExpression()
		}
	}

	return join, true
}

// parseOrderByList parses the ORDER BY item list.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem

	for {
		item := OrderByItem{Expr: p.parseExpression()}

		if p.match(token.DESC) {
			item.Desc = true
		} else {
			p.match(token.ASC)
		}

		if p.match(token.NULLS) {
			switch p.token.Type {
			case token.FIRST:
				v := true
				item.NullsFirst = &v
				p.nextToken()
			case token.LAST:
				v := false
				item.NullsFirst = &v
				p.nextToken()
			default:
				p.addError("expected FIRST or LAST after NULLS")
			}
		}

		items = append(items, item)

		if !p.match(token.COMMA) {
			break
		}
	}

	return items
}

// parseExpressionList parses a comma-separated expression list.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr

	for {
		exprs = append(exprs, p.parseExpression())

		if !p.match(token.COMMA) {
			break
		}
	}

	return exprs
}
