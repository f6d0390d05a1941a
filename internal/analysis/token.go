package analysis

import "fmt"

// TokenType classifies a token by the lexical shape of its surface form.
type TokenType int

const (
	TokenInvalid TokenType = iota
	TokenAbbreviation
	TokenPossessive
	TokenTerm
)

var tokenTypeNames = map[TokenType]string{
	TokenInvalid:      "invalid",
	TokenAbbreviation: "abbreviation",
	TokenPossessive:   "possessive",
	TokenTerm:         "term",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// MarshalText renders the type by name so JSON output stays readable.
func (t TokenType) MarshalText() ([]byte, error) {
	name, ok := tokenTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown token type %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (t *TokenType) UnmarshalText(text []byte) error {
	for typ, name := range tokenTypeNames {
		if name == string(text) {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown token type %q", text)
}

// Token is a classified, normalized lexical unit. Tokens are values and are never mutated.
type Token struct {
	Text string    `json:"text"`
	Type TokenType `json:"type"`
}

// NewTerm builds a Term token, the type every filter emits.
func NewTerm(text string) Token {
	return Token{Text: text, Type: TokenTerm}
}

// Texts returns the text of each token in order.
func Texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Text
	}
	return out
}
