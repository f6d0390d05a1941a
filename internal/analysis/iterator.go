package analysis

import "reflect"

// Iterator is a one-token-lookahead cursor over a Stream. The first token is pulled when the
// iterator is built, so it is available before any call to Increment.
//
// An Iterator owns its stream; nothing else should pull from it.
type Iterator struct {
	stream   Stream
	position int
	current  Token
	active   bool
}

// NewIterator wraps s and eagerly pulls its first token.
func NewIterator(s Stream) *Iterator {
	it := &Iterator{stream: s}
	it.current, it.active = s.Next()
	return it
}

// Dereference returns the current token without consuming it. It reports false once the
// stream is exhausted.
func (it *Iterator) Dereference() (Token, bool) {
	if !it.active {
		return Token{}, false
	}
	return it.current, true
}

// Increment pulls the next token and advances the position. Once exhausted it does nothing.
func (it *Iterator) Increment() {
	if !it.active {
		return
	}
	it.current, it.active = it.stream.Next()
	if !it.active {
		it.current = Token{}
	}
	it.position++
}

// Next returns the current token and then advances.
func (it *Iterator) Next() (Token, bool) {
	tok, ok := it.Dereference()
	it.Increment()
	return tok, ok
}

// Position counts the successful advances made so far.
func (it *Iterator) Position() int {
	return it.position
}

// Exhausted reports whether the underlying stream has run out.
func (it *Iterator) Exhausted() bool {
	return !it.active
}

// Equal reports whether both iterators wrap the same stream instance and sit at the same
// position on the same current token. Iterators over distinct streams with identical
// contents are never equal. Streams of a non-comparable type have no identity to share, so
// iterators over them are equal only to themselves.
func (it *Iterator) Equal(other *Iterator) bool {
	if it == nil || other == nil {
		return it == other
	}
	if it == other {
		return true
	}
	return sameStream(it.stream, other.stream) &&
		it.position == other.position &&
		it.active == other.active &&
		it.current == other.current
}

func sameStream(a, b Stream) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// NotEqual is the negation of Equal.
func (it *Iterator) NotEqual(other *Iterator) bool {
	return !it.Equal(other)
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect() []Token {
	var out []Token
	for {
		tok, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, tok)
	}
}
