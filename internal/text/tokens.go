// Package text segments loaded documents into word tokens and aligns
// reader selections to whole-word boundaries.
package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// WordToken is one atomic unit of the rendered text. Whitespace runs are kept
// as their own tokens so the original text can be rebuilt exactly.
type WordToken struct {
	Text         string
	IsWhitespace bool
	Index        int
}

// Document is the token sequence of one loaded text. It is rebuilt, never
// mutated, whenever new text is loaded.
type Document struct {
	tokens []WordToken
}

// NewDocument tokenizes src.
func NewDocument(src string) *Document {
	return &Document{tokens: Tokenize(src)}
}

// Tokenize splits src into alternating word and whitespace tokens.
// Concatenating the tokens' Text reproduces src byte for byte, including
// invalid UTF-8 which is treated as part of a word.
func Tokenize(src string) []WordToken {
	var tokens []WordToken
	start := 0
	inSpace := false
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRuneInString(src[i:])
		space := r != utf8.RuneError && unicode.IsSpace(r)
		if i > start && space != inSpace {
			tokens = append(tokens, WordToken{Text: src[start:i], IsWhitespace: inSpace, Index: len(tokens)})
			start = i
		}
		inSpace = space
		i += size
	}
	if start < len(src) {
		tokens = append(tokens, WordToken{Text: src[start:], IsWhitespace: inSpace, Index: len(tokens)})
	}
	return tokens
}

// Reconstruct joins tokens back into text.
func Reconstruct(tokens []WordToken) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Tokens returns the document's tokens. Callers must not modify the slice.
func (d *Document) Tokens() []WordToken {
	if d == nil {
		return nil
	}
	return d.tokens
}

// Len returns the number of tokens.
func (d *Document) Len() int {
	return len(d.Tokens())
}

// Token returns the token at index i.
func (d *Document) Token(i int) (WordToken, bool) {
	if d == nil || i < 0 || i >= len(d.tokens) {
		return WordToken{}, false
	}
	return d.tokens[i], true
}

// IsWord reports whether index i refers to a non-whitespace token.
func (d *Document) IsWord(i int) bool {
	t, ok := d.Token(i)
	return ok && !t.IsWhitespace
}

// String returns the full document text.
func (d *Document) String() string {
	return Reconstruct(d.Tokens())
}

// WordCount returns the number of non-whitespace tokens.
func (d *Document) WordCount() int {
	n := 0
	for _, t := range d.Tokens() {
		if !t.IsWhitespace {
			n++
		}
	}
	return n
}

// SpanText rebuilds the text covered by span, whitespace included.
func (d *Document) SpanText(span SelectionSpan) string {
	if !d.IsWord(span.Start) || !d.IsWord(span.End) || span.Start > span.End {
		return ""
	}
	return Reconstruct(d.tokens[span.Start : span.End+1])
}
