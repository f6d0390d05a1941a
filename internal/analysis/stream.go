package analysis

// Stream is a pull-based, finite source of tokens. Once Next reports false it keeps
// reporting false.
//
// Iterators compare streams by identity. Pointer implementations get the expected behavior;
// a stream of a non-comparable type never matches another instance.
type Stream interface {
	Next() (Token, bool)
}

// EmptyStream is exhausted from the start.
type EmptyStream struct {
	// non-zero size so separate instances have distinct addresses
	_ byte
}

// NewEmptyStream returns a stream that yields nothing.
func NewEmptyStream() *EmptyStream {
	return &EmptyStream{}
}

func (*EmptyStream) Next() (Token, bool) {
	return Token{}, false
}

// SingleStream yields one token and is then exhausted.
type SingleStream struct {
	token Token
	done  bool
}

// NewSingleStream returns a stream over exactly tok.
func NewSingleStream(tok Token) *SingleStream {
	return &SingleStream{token: tok}
}

func (s *SingleStream) Next() (Token, bool) {
	if s.done {
		return Token{}, false
	}
	s.done = true
	return s.token, true
}

// SliceStream drains an ordered collection head first.
type SliceStream struct {
	tokens []Token
}

// NewSliceStream returns a stream over a copy of tokens.
func NewSliceStream(tokens []Token) *SliceStream {
	return &SliceStream{tokens: append([]Token(nil), tokens...)}
}

// NewTermStream wraps plain strings as Term tokens.
func NewTermStream(texts ...string) *SliceStream {
	tokens := make([]Token, len(texts))
	for i, text := range texts {
		tokens[i] = NewTerm(text)
	}
	return &SliceStream{tokens: tokens}
}

func (s *SliceStream) Next() (Token, bool) {
	if len(s.tokens) == 0 {
		return Token{}, false
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, true
}

// Len reports how many tokens remain.
func (s *SliceStream) Len() int {
	return len(s.tokens)
}

// Drain pulls every remaining token from s.
func Drain(s Stream) []Token {
	var out []Token
	for {
		tok, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, tok)
	}
}
