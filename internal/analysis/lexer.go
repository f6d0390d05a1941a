package analysis

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrPatternCompile reports that one of the lexer's own patterns failed to compile.
	ErrPatternCompile = errors.New("lexer pattern compile failed")
	// ErrLexerNotInitialized is returned by a Lexer that was not built with NewLexer.
	ErrLexerNotInitialized = errors.New("lexer not initialized")
)

// lexPatterns holds the pattern sources so a lexer can be built from an alternative set in tests.
type lexPatterns struct {
	scan         string
	abbreviation string
	possessive   string
	term         string
}

// Abbreviations are tried first at each position so "r.d.c." is not split into single letters.
var defaultPatterns = lexPatterns{
	scan:         `(?:\p{L}+\.){2,}|[\p{L}\p{N}_]+(?:'[\p{L}\p{N}_]+)?`,
	abbreviation: `^(?:[a-zA-Z]+\.){2,}$`,
	possessive:   `^[a-zA-Z0-9]+'[a-zA-Z]+$`,
	term:         `^[a-zA-Z0-9]+$`,
}

// Lexer scans text for candidate lexical units and classifies and normalizes each one.
// A Lexer holds only compiled patterns and is safe for concurrent use.
type Lexer struct {
	scan         *regexp.Regexp
	abbreviation *regexp.Regexp
	possessive   *regexp.Regexp
	term         *regexp.Regexp
}

// NewLexer compiles the scanning and classification patterns once.
func NewLexer() (*Lexer, error) {
	return newLexer(defaultPatterns)
}

func newLexer(p lexPatterns) (*Lexer, error) {
	compile := func(name, src string) (*regexp.Regexp, error) {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPatternCompile, name, err)
		}
		return re, nil
	}

	scan, err := compile("scan", p.scan)
	if err != nil {
		return nil, err
	}
	abbreviation, err := compile("abbreviation", p.abbreviation)
	if err != nil {
		return nil, err
	}
	possessive, err := compile("possessive", p.possessive)
	if err != nil {
		return nil, err
	}
	term, err := compile("term", p.term)
	if err != nil {
		return nil, err
	}

	return &Lexer{scan: scan, abbreviation: abbreviation, possessive: possessive, term: term}, nil
}

// Classify assigns a type to a raw candidate. The first matching rule wins.
func (l *Lexer) Classify(candidate string) TokenType {
	switch {
	case l.abbreviation.MatchString(candidate):
		return TokenAbbreviation
	case l.possessive.MatchString(candidate):
		return TokenPossessive
	case l.term.MatchString(candidate):
		return TokenTerm
	default:
		return TokenInvalid
	}
}

// Normalize rewrites a candidate according to its type. The type itself is never changed.
func Normalize(candidate string, typ TokenType) string {
	switch typ {
	case TokenAbbreviation:
		return strings.ReplaceAll(candidate, ".", "")
	case TokenPossessive:
		if idx := strings.IndexByte(candidate, '\''); idx >= 0 {
			return candidate[:idx]
		}
		return candidate
	default:
		return candidate
	}
}

// Tokenize lowercases text, scans it left to right and returns the classified tokens in
// document order. Invalid candidates are dropped. A document with no candidates yields an
// empty slice and a nil error.
func (l *Lexer) Tokenize(text string) ([]Token, error) {
	if l == nil || l.scan == nil {
		return nil, ErrLexerNotInitialized
	}

	candidates := l.scan.FindAllString(strings.ToLower(text), -1)
	tokens := make([]Token, 0, len(candidates))
	for _, candidate := range candidates {
		typ := l.Classify(candidate)
		if typ == TokenInvalid {
			continue
		}
		tokens = append(tokens, Token{Text: Normalize(candidate, typ), Type: typ})
	}
	return tokens, nil
}
