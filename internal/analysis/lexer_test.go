package analysis

import (
	"errors"
	"testing"
)

func newTestLexer(t *testing.T) *Lexer {
	t.Helper()
	lexer, err := NewLexer()
	if err != nil {
		t.Fatalf("new lexer: %v", err)
	}
	return lexer
}

func TestClassifyAndNormalize(t *testing.T) {
	lexer := newTestLexer(t)

	cases := []struct {
		candidate string
		wantType  TokenType
		wantText  string
	}{
		{"r.d.c.", TokenAbbreviation, "rdc"},
		{"u.s.", TokenAbbreviation, "us"},
		{"john's", TokenPossessive, "john"},
		{"42's", TokenPossessive, "42"},
		{"cat", TokenTerm, "cat"},
		{"route66", TokenTerm, "route66"},
		{"snake_case", TokenInvalid, "snake_case"},
		{"café", TokenInvalid, "café"},
		{"john's2", TokenInvalid, "john's2"},
		{"a.", TokenInvalid, "a."},
	}

	for _, tc := range cases {
		t.Run(tc.candidate, func(t *testing.T) {
			typ := lexer.Classify(tc.candidate)
			if typ != tc.wantType {
				t.Fatalf("Classify(%q) = %s, want %s", tc.candidate, typ, tc.wantType)
			}
			if got := Normalize(tc.candidate, typ); got != tc.wantText {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.candidate, got, tc.wantText)
			}
		})
	}
}

func TestTokenizePossessive(t *testing.T) {
	tokens, err := newTestLexer(t).Tokenize("John's cat")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}

	want := []Token{
		{Text: "john", Type: TokenPossessive},
		{Text: "cat", Type: TokenTerm},
	}
	assertTokens(t, tokens, want)
}

func TestTokenizeAbbreviation(t *testing.T) {
	tokens, err := newTestLexer(t).Tokenize("R.D.C. is a country in Africa.")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}

	want := []Token{
		{Text: "rdc", Type: TokenAbbreviation},
		{Text: "is", Type: TokenTerm},
		{Text: "a", Type: TokenTerm},
		{Text: "country", Type: TokenTerm},
		{Text: "in", Type: TokenTerm},
		{Text: "africa", Type: TokenTerm},
	}
	assertTokens(t, tokens, want)
}

func TestTokenizeDropsInvalid(t *testing.T) {
	tokens, err := newTestLexer(t).Tokenize("my_var holds a café order")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}

	for _, tok := range tokens {
		if tok.Type == TokenInvalid {
			t.Fatalf("invalid token leaked: %+v", tok)
		}
	}
	if got, want := Texts(tokens), []string{"holds", "a", "order"}; !equalStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenizeEmptyDocument(t *testing.T) {
	tokens, err := newTestLexer(t).Tokenize("  ... !! ")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected no tokens, got %+v", tokens)
	}
}

func TestLexerPatternCompileFailure(t *testing.T) {
	bad := defaultPatterns
	bad.possessive = `^[a-z+$`

	_, err := newLexer(bad)
	if !errors.Is(err, ErrPatternCompile) {
		t.Fatalf("expected ErrPatternCompile, got %v", err)
	}
}

func TestZeroLexerReportsNotInitialized(t *testing.T) {
	var lexer Lexer
	tokens, err := lexer.Tokenize("hello")
	if !errors.Is(err, ErrLexerNotInitialized) {
		t.Fatalf("expected ErrLexerNotInitialized, got %v", err)
	}
	if tokens != nil {
		t.Fatalf("expected no tokens from an uninitialized lexer, got %+v", tokens)
	}
}

func TestTokenTypeText(t *testing.T) {
	for _, typ := range []TokenType{TokenAbbreviation, TokenPossessive, TokenTerm, TokenInvalid} {
		text, err := typ.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", typ, err)
		}
		var parsed TokenType
		if err := parsed.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if parsed != typ {
			t.Fatalf("round trip %s became %s", typ, parsed)
		}
	}
}

func assertTokens(t *testing.T, got, want []Token) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d mismatch: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
