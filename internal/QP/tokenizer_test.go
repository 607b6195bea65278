package QP

import (
	"testing"
)

func TestTokenizerSelect(t *testing.T) {
	input := "SELECT * FROM users WHERE id = 1"
	tok := NewTokenizer(input)
	tokens, err := tok.Tokenize()
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}

	if len(tokens) != 9 {
		t.Fatalf("expected 9 tokens, got %d", len(tokens))
	}

	if tokens[0].Type != TokenKeyword || tokens[0].Literal != "SELECT" {
		t.Errorf("expected SELECT keyword, got %v", tokens[0])
	}
	if tokens[1].Type != TokenAsterisk {
		t.Errorf("expected *, got %v", tokens[1])
	}
	if tokens[3].Type != TokenIdentifier || tokens[3].Literal != "users" {
		t.Errorf("expected identifier users, got %v", tokens[3])
	}
	if tokens[8].Type != TokenEOF {
		t.Errorf("expected EOF, got %v", tokens[8])
	}
}

func TestTokenizerQuoted(t *testing.T) {
	tokens, err := NewTokenizer(`'it''s' "Col ""x"""`).Tokenize()
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	if tokens[0].Type != TokenString || tokens[0].Literal != "it's" {
		t.Errorf("expected string it's, got %v", tokens[0])
	}
	if tokens[1].Type != TokenIdentifier || tokens[1].Literal != `Col "x"` {
		t.Errorf("expected quoted identifier, got %v", tokens[1])
	}
}

func TestTokenizerUnterminated(t *testing.T) {
	if _, err := NewTokenizer("'abc").Tokenize(); err == nil {
		t.Error("expected error for unterminated string")
	}
}

func TestTokenizerOperators(t *testing.T) {
	tokens, err := NewTokenizer("a <= b <> c != d || e >= 1.5e3").Tokenize()
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	want := []TokenType{
		TokenIdentifier, TokenLe, TokenIdentifier, TokenNe, TokenIdentifier, TokenNe,
		TokenIdentifier, TokenConcat, TokenIdentifier, TokenGe, TokenNumber, TokenEOF,
	}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	for i, w := range want {
		if tokens[i].Type != w {
			t.Errorf("token %d: expected %v, got %v", i, w, tokens[i].Type)
		}
	}
	if tokens[10].Literal != "1.5e3" {
		t.Errorf("expected number 1.5e3, got %q", tokens[10].Literal)
	}
}

func TestTokenizerComments(t *testing.T) {
	tokens, err := NewTokenizer("a -- line\n/* block */ b").Tokenize()
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	if len(tokens) != 3 || tokens[1].Literal != "b" {
		t.Errorf("comments not skipped: %v", tokens)
	}
}

func TestTokenizerInvalid(t *testing.T) {
	if _, err := NewTokenizer("a ! b").Tokenize(); err == nil {
		t.Error("expected error for bare !")
	}
	if _, err := NewTokenizer("a ; b").Tokenize(); err == nil {
		t.Error("expected error for ;")
	}
}
