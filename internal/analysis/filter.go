package analysis

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

// ErrUnknownFilter is returned by FilterFor for an unrecognized filter type.
var ErrUnknownFilter = errors.New("unknown filter")

// Filter maps one token's text to zero or more output tokens.
// Implementations hold only read-only configuration and may be shared between goroutines.
type Filter interface {
	Filter(text string) []Token
}

// StemmerFilter reduces text to its English Porter2 stem. It never drops input.
type StemmerFilter struct{}

// NewStemmerFilter returns the English stemming filter.
func NewStemmerFilter() *StemmerFilter {
	return &StemmerFilter{}
}

func (f *StemmerFilter) Filter(text string) []Token {
	return []Token{NewTerm(english.Stem(text, true))}
}

//go:embed stopwords_en.txt
var englishStopwords string

// EnglishStopwords returns a copy of the built-in English stopword list.
func EnglishStopwords() []string {
	return strings.Fields(englishStopwords)
}

// StopwordFilter drops text that is an exact member of its stopword set.
type StopwordFilter struct {
	stopwords map[string]struct{}
}

// NewStopwordFilter builds a filter over the given words, or the built-in English list when none
// are supplied. Membership is exact and case-sensitive.
func NewStopwordFilter(words ...string) *StopwordFilter {
	if len(words) == 0 {
		words = EnglishStopwords()
	}
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return &StopwordFilter{stopwords: set}
}

func (f *StopwordFilter) Filter(text string) []Token {
	if _, blocked := f.stopwords[text]; blocked {
		return nil
	}
	return []Token{NewTerm(text)}
}

// LengthFilter drops text whose rune count falls outside [Min, Max]. Max of zero means unbounded.
type LengthFilter struct {
	Min int
	Max int
}

func (f LengthFilter) Filter(text string) []Token {
	n := utf8.RuneCountInString(text)
	if n < f.Min || (f.Max > 0 && n > f.Max) {
		return nil
	}
	return []Token{NewTerm(text)}
}

// Chain applies filters in order. Each stage's flattened output feeds the next stage; an empty
// intermediate result ends processing of that token.
type Chain []Filter

// Apply runs tok through the chain. An empty chain passes tok through with its type intact.
func (c Chain) Apply(tok Token) []Token {
	current := []Token{tok}
	for _, f := range c {
		next := make([]Token, 0, len(current))
		for _, in := range current {
			next = append(next, f.Filter(in.Text)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// Filter type names accepted by FilterFor.
const (
	FilterStemmer   = "stemmer"
	FilterStopwords = "stopwords"
	FilterLength    = "length"
)

// FilterSpec is the serializable description of a filter stage.
type FilterSpec struct {
	Type  string   `json:"type" toml:"type" yaml:"type"`
	Min   int      `json:"min,omitempty" toml:"min" yaml:"min"`
	Max   int      `json:"max,omitempty" toml:"max" yaml:"max"`
	Words []string `json:"words,omitempty" toml:"words" yaml:"words"`
}

// Validate checks the spec without building the filter.
func (s FilterSpec) Validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case FilterStemmer, "stem", FilterStopwords:
		return nil
	case FilterLength:
		if s.Min < 0 || s.Max < 0 {
			return fmt.Errorf("length filter bounds must be non-negative")
		}
		if s.Max > 0 && s.Max < s.Min {
			return fmt.Errorf("length filter max %d is below min %d", s.Max, s.Min)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFilter, s.Type)
	}
}

// FilterFor builds the filter described by spec.
func FilterFor(spec FilterSpec) (Filter, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case FilterStemmer, "stem":
		return NewStemmerFilter(), nil
	case FilterStopwords:
		return NewStopwordFilter(spec.Words...), nil
	default:
		return LengthFilter{Min: spec.Min, Max: spec.Max}, nil
	}
}
