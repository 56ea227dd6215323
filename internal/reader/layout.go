package reader

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/tradux/tradux/internal/placement"
	"github.com/tradux/tradux/internal/text"
)

// Grid lays a document out on a fixed-width character grid so terminal
// sessions get the same popup geometry a rendered page would.
type Grid struct {
	CellWidth  float64
	LineHeight float64
	// Top is the offset of the first line from the top of the viewport.
	Top float64
}

// DefaultGrid approximates a 16px monospace page.
var DefaultGrid = Grid{CellWidth: 8, LineHeight: 20, Top: 40}

// TokenRect returns the bounding rect of token i. A token spanning a line
// break yields the rect of its first line.
func (g Grid) TokenRect(doc *text.Document, i int) placement.Rect {
	line, col := 0, 0
	for _, t := range doc.Tokens()[:min(i, doc.Len())] {
		if n := strings.Count(t.Text, "\n"); n > 0 {
			line += n
			col = uniseg.StringWidth(t.Text[strings.LastIndex(t.Text, "\n")+1:])
			continue
		}
		col += uniseg.StringWidth(t.Text)
	}
	width := 0
	if tok, ok := doc.Token(i); ok {
		first, _, _ := strings.Cut(tok.Text, "\n")
		width = uniseg.StringWidth(first)
	}
	return placement.Rect{
		Left:   float64(col) * g.CellWidth,
		Top:    g.Top + float64(line)*g.LineHeight,
		Width:  float64(width) * g.CellWidth,
		Height: g.LineHeight,
	}
}

// SpanRect covers the first and last token of span.
func (g Grid) SpanRect(doc *text.Document, span text.SelectionSpan) placement.Rect {
	return g.TokenRect(doc, span.Start).Union(g.TokenRect(doc, span.End))
}
