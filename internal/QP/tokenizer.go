package QP

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenType int

const (
	TokenInvalid TokenType = iota
	TokenEOF
	TokenIdentifier
	TokenString
	TokenNumber
	TokenKeyword
	TokenLeftParen
	TokenRightParen
	TokenComma
	TokenDot
	TokenAsterisk
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe
	TokenPlus
	TokenMinus
	TokenSlash
	TokenPercent
	TokenConcat
	TokenAnd
	TokenOr
	TokenNot
	TokenIs
	TokenCollate
)

var tokenNames = map[TokenType]string{
	TokenEq: "=", TokenNe: "<>", TokenLt: "<", TokenLe: "<=", TokenGt: ">", TokenGe: ">=",
	TokenPlus: "+", TokenMinus: "-", TokenAsterisk: "*", TokenSlash: "/", TokenPercent: "%",
	TokenConcat: "||", TokenAnd: "AND", TokenOr: "OR", TokenNot: "NOT",
}

// String renders operator tokens the way they are written in SQL.
func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

var keywords = map[string]TokenType{
	"SELECT":    TokenKeyword,
	"FROM":      TokenKeyword,
	"WHERE":     TokenKeyword,
	"AND":       TokenAnd,
	"OR":        TokenOr,
	"NOT":       TokenNot,
	"IS":        TokenIs,
	"COLLATE":   TokenCollate,
	"NULL":      TokenKeyword,
	"TRUE":      TokenKeyword,
	"FALSE":     TokenKeyword,
	"DEFAULT":   TokenKeyword,
	"DISTINCT":  TokenKeyword,
	"ALL":       TokenKeyword,
	"UNION":     TokenKeyword,
	"EXCEPT":    TokenKeyword,
	"INTERSECT": TokenKeyword,
	"ORDER":     TokenKeyword,
	"GROUP":     TokenKeyword,
	"BY":        TokenKeyword,
	"HAVING":    TokenKeyword,
	"LIMIT":     TokenKeyword,
	"OFFSET":    TokenKeyword,
	"ASC":       TokenKeyword,
	"DESC":      TokenKeyword,
	"AS":        TokenKeyword,
	"JOIN":      TokenKeyword,
}

type Token struct {
	Type     TokenType
	Literal  string
	Location int
}

type Tokenizer struct {
	input  string
	pos    int
	start  int
	tokens []Token
}

func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{
		input:  input,
		tokens: make([]Token, 0),
	}
}

func (t *Tokenizer) Tokenize() ([]Token, error) {
	for {
		t.skipWhitespace()
		if t.pos >= len(t.input) {
			t.start = t.pos
			t.addToken(TokenEOF, "")
			break
		}

		ch := t.input[t.pos]

		if unicode.IsLetter(rune(ch)) || ch == '_' || ch >= 0x80 {
			t.readIdentifier()
		} else if unicode.IsDigit(rune(ch)) || (ch == '.' && t.pos+1 < len(t.input) && unicode.IsDigit(rune(t.input[t.pos+1]))) {
			t.readNumber()
		} else if ch == '\'' {
			if err := t.readQuoted(TokenString); err != nil {
				return nil, err
			}
		} else if ch == '"' {
			if err := t.readQuoted(TokenIdentifier); err != nil {
				return nil, err
			}
		} else {
			if err := t.readOperator(); err != nil {
				return nil, err
			}
		}
	}
	return t.tokens, nil
}

func (t *Tokenizer) skipWhitespace() {
	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			t.pos++
		} else if ch == '-' && t.pos+1 < len(t.input) && t.input[t.pos+1] == '-' {
			for t.pos < len(t.input) && t.input[t.pos] != '\n' {
				t.pos++
			}
		} else if ch == '/' && t.pos+1 < len(t.input) && t.input[t.pos+1] == '*' {
			t.pos += 2
			for t.pos < len(t.input) {
				if t.input[t.pos] == '*' && t.pos+1 < len(t.input) && t.input[t.pos+1] == '/' {
					t.pos += 2
					break
				}
				t.pos++
			}
		} else {
			break
		}
	}
}

func (t *Tokenizer) readIdentifier() {
	t.start = t.pos
	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		if unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' || ch >= 0x80 {
			t.pos++
		} else {
			break
		}
	}

	literal := t.input[t.start:t.pos]
	upper := strings.ToUpper(literal)

	if tokenType, ok := keywords[upper]; ok {
		t.addToken(tokenType, upper)
	} else {
		t.addToken(TokenIdentifier, literal)
	}
}

func (t *Tokenizer) readNumber() {
	t.start = t.pos
	hasDot := false

	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		if unicode.IsDigit(rune(ch)) {
			t.pos++
		} else if ch == '.' && !hasDot {
			hasDot = true
			t.pos++
		} else if ch == 'e' || ch == 'E' {
			t.pos++
			if t.pos < len(t.input) && (t.input[t.pos] == '+' || t.input[t.pos] == '-') {
				t.pos++
			}
		} else {
			break
		}
	}

	t.addToken(TokenNumber, t.input[t.start:t.pos])
}

// readQuoted reads '...' strings and "..." identifiers; a doubled quote
// inside stands for the quote itself.
func (t *Tokenizer) readQuoted(typ TokenType) error {
	quote := t.input[t.pos]
	t.start = t.pos
	t.pos++

	var sb strings.Builder
	for {
		if t.pos >= len(t.input) {
			return fmt.Errorf("unterminated quoted text at position %d", t.start)
		}
		ch := t.input[t.pos]
		if ch == quote {
			if t.pos+1 < len(t.input) && t.input[t.pos+1] == quote {
				sb.WriteByte(quote)
				t.pos += 2
				continue
			}
			t.pos++
			break
		}
		sb.WriteByte(ch)
		t.pos++
	}
	t.addToken(typ, sb.String())
	return nil
}

func (t *Tokenizer) readOperator() error {
	t.start = t.pos
	ch := t.input[t.pos]
	t.pos++

	switch ch {
	case '(':
		t.addToken(TokenLeftParen, "(")
	case ')':
		t.addToken(TokenRightParen, ")")
	case ',':
		t.addToken(TokenComma, ",")
	case '.':
		t.addToken(TokenDot, ".")
	case '*':
		t.addToken(TokenAsterisk, "*")
	case '=':
		if t.pos < len(t.input) && t.input[t.pos] == '=' {
			t.pos++
		}
		t.addToken(TokenEq, "=")
	case '<':
		if t.pos < len(t.input) && t.input[t.pos] == '=' {
			t.pos++
			t.addToken(TokenLe, "<=")
		} else if t.pos < len(t.input) && t.input[t.pos] == '>' {
			t.pos++
			t.addToken(TokenNe, "<>")
		} else {
			t.addToken(TokenLt, "<")
		}
	case '>':
		if t.pos < len(t.input) && t.input[t.pos] == '=' {
			t.pos++
			t.addToken(TokenGe, ">=")
		} else {
			t.addToken(TokenGt, ">")
		}
	case '!':
		if t.pos < len(t.input) && t.input[t.pos] == '=' {
			t.pos++
			t.addToken(TokenNe, "!=")
		} else {
			return fmt.Errorf("invalid operator '!' at position %d", t.start)
		}
	case '+':
		t.addToken(TokenPlus, "+")
	case '-':
		t.addToken(TokenMinus, "-")
	case '/':
		t.addToken(TokenSlash, "/")
	case '%':
		t.addToken(TokenPercent, "%")
	case '|':
		if t.pos < len(t.input) && t.input[t.pos] == '|' {
			t.pos++
			t.addToken(TokenConcat, "||")
		} else {
			return fmt.Errorf("invalid operator '|' at position %d", t.start)
		}
	default:
		return fmt.Errorf("invalid character '%c' at position %d", ch, t.start)
	}
	return nil
}

func (t *Tokenizer) addToken(tokenType TokenType, literal string) {
	t.tokens = append(t.tokens, Token{
		Type:     tokenType,
		Literal:  literal,
		Location: t.start,
	})
}
