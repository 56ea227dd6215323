package text

import (
	"sync"
	"time"
)

// Gesture tracks one pointer interaction to tell clicks from drags. Any
// pointer movement between down and up marks the interaction as a drag.
type Gesture struct {
	mu       sync.Mutex
	downAt   time.Time
	dragging bool
	now      func() time.Time
}

// NewGesture returns an idle tracker.
func NewGesture() *Gesture {
	return &Gesture{now: time.Now}
}

// PointerDown starts a new interaction.
func (g *Gesture) PointerDown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.downAt = g.now()
	g.dragging = false
}

// PointerMove marks the interaction as a drag if a pointer is down.
func (g *Gesture) PointerMove() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.downAt.IsZero() {
		g.dragging = true
	}
}

// PointerUp ends the interaction and reports whether it was a drag and how
// long the pointer was held.
func (g *Gesture) PointerUp() (dragged bool, held time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.downAt.IsZero() {
		held = g.now().Sub(g.downAt)
	}
	dragged = g.dragging
	g.downAt = time.Time{}
	g.dragging = false
	return dragged, held
}

// IsSelectionTranslation reports whether a settled selection should be
// translated as a selection. A one-word selection made without dragging
// belongs to the word-click path and is skipped to avoid duplicate popups.
func IsSelectionTranslation(exp Expansion, dragged bool) bool {
	return dragged || !exp.IsSingleWord()
}
