package text

import "strings"

// SelectionSpan is an inclusive range over word tokens. Both ends always
// reference non-whitespace tokens and Start <= End.
type SelectionSpan struct {
	Start int
	End   int
}

// Len returns the number of tokens covered, whitespace included.
func (s SelectionSpan) Len() int {
	return s.End - s.Start + 1
}

// Boundary is one end of a live selection: a token index and a byte offset
// inside that token's text. Offset may equal len(token.Text).
type Boundary struct {
	Token  int
	Offset int
}

// Before orders boundaries by position in the document.
func (b Boundary) Before(o Boundary) bool {
	if b.Token != o.Token {
		return b.Token < o.Token
	}
	return b.Offset < o.Offset
}

// Selection is the live selection as reported by the presentation layer.
// Anchor is where the pointer went down, Focus where it was released, so
// Focus may precede Anchor for backwards drags.
type Selection struct {
	Anchor Boundary
	Focus  Boundary
}

// IsCollapsed reports whether the selection has zero length.
func (s Selection) IsCollapsed() bool {
	return s.Anchor == s.Focus
}

// Ordered returns the selection's boundaries in document order.
func (s Selection) Ordered() (start, end Boundary) {
	if s.Focus.Before(s.Anchor) {
		return s.Focus, s.Anchor
	}
	return s.Anchor, s.Focus
}

// Expansion is the result of widening a selection to whole words.
type Expansion struct {
	Span SelectionSpan
	// Text is the whitespace-preserving text of Span.
	Text string
	// Range is the widened live selection the caller should apply so the
	// reader sees the enlarged highlight.
	Range Selection
}

// IsSingleWord reports whether the expansion covers exactly one token.
func (e Expansion) IsSingleWord() bool {
	return e.Span.Start == e.Span.End
}

// Expand widens sel outward to the enclosing word tokens. It returns false
// when there is no actionable selection: a collapsed selection, a boundary
// outside the document or on a whitespace token, or a selection that
// covers no visible text. Callers clear any selection result in that case.
func (d *Document) Expand(sel Selection) (Expansion, bool) {
	if sel.IsCollapsed() {
		return Expansion{}, false
	}
	start, end := sel.Ordered()
	if !d.validBoundary(start) || !d.validBoundary(end) {
		return Expansion{}, false
	}
	if !d.IsWord(start.Token) || !d.IsWord(end.Token) {
		return Expansion{}, false
	}
	if strings.TrimSpace(d.rawText(start, end)) == "" {
		return Expansion{}, false
	}

	span := SelectionSpan{Start: start.Token, End: end.Token}
	return Expansion{
		Span: span,
		Text: d.SpanText(span),
		Range: Selection{
			Anchor: Boundary{Token: span.Start},
			Focus:  Boundary{Token: span.End, Offset: len(d.tokens[span.End].Text)},
		},
	}, true
}

// ExpandWord builds the expansion for a single clicked word.
func (d *Document) ExpandWord(index int) (Expansion, bool) {
	if !d.IsWord(index) {
		return Expansion{}, false
	}
	return d.Expand(Selection{
		Anchor: Boundary{Token: index},
		Focus:  Boundary{Token: index, Offset: len(d.tokens[index].Text)},
	})
}

func (d *Document) validBoundary(b Boundary) bool {
	t, ok := d.Token(b.Token)
	return ok && b.Offset >= 0 && b.Offset <= len(t.Text)
}

// rawText is the text covered by the unexpanded selection.
func (d *Document) rawText(start, end Boundary) string {
	if start.Token == end.Token {
		return d.tokens[start.Token].Text[start.Offset:end.Offset]
	}
	var b strings.Builder
	b.WriteString(d.tokens[start.Token].Text[start.Offset:])
	for i := start.Token + 1; i < end.Token; i++ {
		b.WriteString(d.tokens[i].Text)
	}
	b.WriteString(d.tokens[end.Token].Text[:end.Offset])
	return b.String()
}
