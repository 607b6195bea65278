package QP

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser turns expression and SELECT source text into AST nodes. The full
// statement grammar lives in the SQL front end; the compiler only needs to
// re-read the texts it stores in the catalog (CHECK and DEFAULT clauses)
// and the SELECT sources handed to INSERT.
type Parser struct {
	tokens []Token
	pos    int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseExpr parses a complete expression text.
func ParseExpr(text string) (Expr, error) {
	tokens, err := NewTokenizer(text).Tokenize()
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens)
	if p.current().Type == TokenEOF {
		return nil, fmt.Errorf("empty expression")
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenEOF {
		return nil, fmt.Errorf("near %q: syntax error", p.current().Literal)
	}
	return e, nil
}

// ParseSelect parses a complete SELECT text.
func ParseSelect(text string) (*SelectStmt, error) {
	tokens, err := NewTokenizer(text).Tokenize()
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens)
	sel, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenEOF {
		return nil, fmt.Errorf("near %q: syntax error", p.current().Literal)
	}
	return sel, nil
}

// MustParseSelect is ParseSelect that panics; for tests and fixed texts.
func MustParseSelect(text string) *SelectStmt {
	sel, err := ParseSelect(text)
	if err != nil {
		panic(err)
	}
	return sel
}

// MustParseExpr is ParseExpr that panics; for tests and fixed texts.
func MustParseExpr(text string) Expr {
	e, err := ParseExpr(text)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *Parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Type: TokenEOF}
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return Token{Type: TokenEOF}
}

func (p *Parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) isKeyword(kw string) bool {
	tok := p.current()
	return tok.Type == TokenKeyword && tok.Literal == kw
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return fmt.Errorf("near %q: expected %s", p.current().Literal, kw)
	}
	p.advance()
	return nil
}

func (p *Parser) parseExpr() (Expr, error) {
	return p.parseOrExpr()
}

func (p *Parser) parseOrExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: TokenOr, Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) parseAndExpr() (Expr, error) {
	left, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: TokenAnd, Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) parseNotExpr() (Expr, error) {
	if p.current().Type == TokenNot {
		p.advance()
		e, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: TokenNot, Expr: e}, nil
	}
	return p.parseCmpExpr()
}

func isComparison(t TokenType) bool {
	switch t {
	case TokenEq, TokenNe, TokenLt, TokenLe, TokenGt, TokenGe:
		return true
	}
	return false
}

func (p *Parser) parseCmpExpr() (Expr, error) {
	left, err := p.parseAddExpr()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case isComparison(p.current().Type):
			op := p.advance().Type
			right, err := p.parseAddExpr()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpr{Op: op, Left: left, Right: right}
		case p.current().Type == TokenIs:
			p.advance()
			not := false
			if p.current().Type == TokenNot {
				not = true
				p.advance()
			}
			if !p.isKeyword("NULL") {
				return nil, fmt.Errorf("near %q: expected NULL after IS", p.current().Literal)
			}
			p.advance()
			left = &IsNullExpr{Expr: left, Not: not}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseAddExpr() (Expr, error) {
	left, err := p.parseMulExpr()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenPlus || p.current().Type == TokenMinus {
		op := p.advance().Type
		right, err := p.parseMulExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) parseMulExpr() (Expr, error) {
	left, err := p.parseConcatExpr()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAsterisk || p.current().Type == TokenSlash || p.current().Type == TokenPercent {
		op := p.advance().Type
		right, err := p.parseConcatExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) parseConcatExpr() (Expr, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenConcat {
		p.advance()
		right, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: TokenConcat, Left: left, Right: right}
	}

	return left, nil
}

func (p *Parser) parseUnaryExpr() (Expr, error) {
	if p.current().Type == TokenMinus || p.current().Type == TokenPlus {
		op := p.advance().Type
		e, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		// fold signed numeric literals
		if lit, ok := e.(*Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				if op == TokenMinus {
					return &Literal{Value: -v}, nil
				}
				return lit, nil
			case float64:
				if op == TokenMinus {
					return &Literal{Value: -v}, nil
				}
				return lit, nil
			}
		}
		return &UnaryExpr{Op: op, Expr: e}, nil
	}

	e, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenCollate {
		p.advance()
		tok := p.advance()
		if tok.Type != TokenIdentifier {
			return nil, fmt.Errorf("near %q: expected collation name", tok.Literal)
		}
		e = &CollateExpr{Expr: e, Collation: tok.Literal}
	}
	return e, nil
}

func (p *Parser) parsePrimaryExpr() (Expr, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		return parseNumber(tok.Literal)
	case TokenString:
		p.advance()
		return &Literal{Value: tok.Literal}, nil
	case TokenLeftParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.current().Type != TokenRightParen {
			return nil, fmt.Errorf("near %q: expected )", p.current().Literal)
		}
		p.advance()
		return e, nil
	case TokenIdentifier:
		p.advance()
		if p.current().Type == TokenDot {
			p.advance()
			if p.current().Type == TokenAsterisk {
				p.advance()
				return &StarExpr{Table: tok.Literal}, nil
			}
			col := p.advance()
			if col.Type != TokenIdentifier {
				return nil, fmt.Errorf("near %q: expected column name", col.Literal)
			}
			return &ColumnRef{Table: tok.Literal, Name: col.Literal}, nil
		}
		if p.current().Type == TokenLeftParen {
			return nil, fmt.Errorf("function %s() is not supported in this context", tok.Literal)
		}
		return &ColumnRef{Name: tok.Literal}, nil
	case TokenAsterisk:
		p.advance()
		return &StarExpr{}, nil
	case TokenKeyword:
		switch tok.Literal {
		case "NULL":
			p.advance()
			return &Literal{Value: nil}, nil
		case "TRUE":
			p.advance()
			return &Literal{Value: true}, nil
		case "FALSE":
			p.advance()
			return &Literal{Value: false}, nil
		case "DEFAULT":
			p.advance()
			return &DefaultExpr{}, nil
		}
	case TokenEOF:
		return nil, fmt.Errorf("incomplete input")
	}
	return nil, fmt.Errorf("near %q: syntax error", tok.Literal)
}

func parseNumber(lit string) (Expr, error) {
	if !strings.ContainsAny(lit, ".eE") {
		if v, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return &Literal{Value: v}, nil
		}
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed number %q", lit)
	}
	return &Literal{Value: v}, nil
}

func (p *Parser) parseSelect() (*SelectStmt, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &SelectStmt{}
	if p.isKeyword("DISTINCT") {
		stmt.Distinct = true
		p.advance()
	} else if p.isKeyword("ALL") {
		p.advance()
	}

	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		col := ResultColumn{Expr: e}
		if p.isKeyword("AS") {
			p.advance()
			col.Alias = p.advance().Literal
		} else if p.current().Type == TokenIdentifier {
			col.Alias = p.advance().Literal
		}
		stmt.Columns = append(stmt.Columns, col)
		if p.current().Type != TokenComma {
			break
		}
		p.advance()
	}

	if p.isKeyword("FROM") {
		p.advance()
		tok := p.advance()
		if tok.Type != TokenIdentifier {
			return nil, fmt.Errorf("near %q: expected table name", tok.Literal)
		}
		stmt.From = &TableRef{Name: tok.Literal}
		if p.isKeyword("AS") {
			p.advance()
			stmt.From.Alias = p.advance().Literal
		} else if p.current().Type == TokenIdentifier {
			stmt.From.Alias = p.advance().Literal
		}
		if p.current().Type == TokenComma || p.isKeyword("JOIN") {
			stmt.Joined = true
			p.skipJoinTail()
		}
	}

	if p.isKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.isKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if p.current().Type != TokenComma {
				break
			}
			p.advance()
		}
		if p.isKeyword("HAVING") {
			p.advance()
			having, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Having = having
		}
	}

	if p.isKeyword("UNION") || p.isKeyword("EXCEPT") || p.isKeyword("INTERSECT") {
		stmt.SetOp = p.advance().Literal
		if p.isKeyword("ALL") {
			stmt.SetOpAll = true
			p.advance()
		}
		right, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		stmt.SetOpRight = right
		return stmt, nil
	}

	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			ob := OrderBy{Expr: e}
			if p.isKeyword("DESC") {
				ob.Desc = true
				p.advance()
			} else if p.isKeyword("ASC") {
				p.advance()
			}
			stmt.OrderBy = append(stmt.OrderBy, ob)
			if p.current().Type != TokenComma {
				break
			}
			p.advance()
		}
	}

	if p.isKeyword("LIMIT") {
		p.advance()
		limit, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Limit = limit
		if p.isKeyword("OFFSET") {
			p.advance()
			offset, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Offset = offset
		}
	}

	return stmt, nil
}

// skipJoinTail consumes the remaining FROM sources; multi-source SELECTs
// are only recorded as such.
func (p *Parser) skipJoinTail() {
	depth := 0
	for p.current().Type != TokenEOF {
		if depth == 0 && (p.isKeyword("WHERE") || p.isKeyword("GROUP") || p.isKeyword("ORDER") ||
			p.isKeyword("LIMIT") || p.isKeyword("UNION") || p.isKeyword("EXCEPT") || p.isKeyword("INTERSECT")) {
			return
		}
		switch p.current().Type {
		case TokenLeftParen:
			depth++
		case TokenRightParen:
			depth--
		}
		p.advance()
	}
}
