package analysis

import (
	"fmt"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CharFilter rewrites raw text before it reaches the lexer.
type CharFilter interface {
	Apply(text string) (string, error)
}

// DiacriticFolder strips combining marks so that "café" lexes as "cafe".
type DiacriticFolder struct{}

func (DiacriticFolder) Apply(text string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		return "", fmt.Errorf("fold diacritics: %w", err)
	}
	return folded, nil
}

// Config describes an analysis pipeline.
type Config struct {
	Filters        []FilterSpec
	FoldDiacritics bool
}

// Analyzer runs char filters, the lexer and a filter chain over document text.
// It carries no per-call state and may be shared between goroutines.
type Analyzer struct {
	charFilters []CharFilter
	lexer       *Lexer
	chain       Chain
}

// NewAnalyzer builds the lexer and resolves every filter in cfg.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	lexer, err := NewLexer()
	if err != nil {
		return nil, err
	}

	chain := make(Chain, 0, len(cfg.Filters))
	for i, spec := range cfg.Filters {
		f, err := FilterFor(spec)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		chain = append(chain, f)
	}

	a := &Analyzer{lexer: lexer, chain: chain}
	if cfg.FoldDiacritics {
		a.charFilters = append(a.charFilters, DiacriticFolder{})
	}
	return a, nil
}

// NewAnalyzerWith builds an analyzer around caller-supplied filters.
func NewAnalyzerWith(filters ...Filter) (*Analyzer, error) {
	lexer, err := NewLexer()
	if err != nil {
		return nil, err
	}
	return &Analyzer{lexer: lexer, chain: Chain(filters)}, nil
}

// Analyze returns the filtered token sequence for text in document order.
func (a *Analyzer) Analyze(text string) ([]Token, error) {
	for _, cf := range a.charFilters {
		var err error
		if text, err = cf.Apply(text); err != nil {
			return nil, err
		}
	}

	lexed, err := a.lexer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(a.chain) == 0 {
		return lexed, nil
	}

	tokens := make([]Token, 0, len(lexed))
	for _, tok := range lexed {
		tokens = append(tokens, a.chain.Apply(tok)...)
	}
	return tokens, nil
}

// Stream analyzes text and returns an iterator over the result.
func (a *Analyzer) Stream(text string) (*Iterator, error) {
	tokens, err := a.Analyze(text)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return NewIterator(NewEmptyStream()), nil
	}
	return NewIterator(NewSliceStream(tokens)), nil
}
