// Package placement positions the translation popup relative to the
// selection it belongs to.
package placement

const (
	// DefaultMargin separates the popup from its anchor rect.
	DefaultMargin = 10.0
	// DefaultMinSpace estimates popup height plus margin. Rects closer than
	// this to the top of the viewport get the popup below them.
	DefaultMinSpace = 60.0
)

// Rect is a bounding rectangle in viewport coordinates (y grows downwards).
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

func (r Rect) Bottom() float64  { return r.Top + r.Height }
func (r Rect) CenterX() float64 { return r.Left + r.Width/2 }

// Union returns the smallest rect covering r and o.
func (r Rect) Union(o Rect) Rect {
	left := min(r.Left, o.Left)
	top := min(r.Top, o.Top)
	right := max(r.Left+r.Width, o.Left+o.Width)
	bottom := max(r.Bottom(), o.Bottom())
	return Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// Placement is the popup anchor. Flip means the popup renders below the
// anchor instead of above it.
type Placement struct {
	AnchorX float64
	AnchorY float64
	Flip    bool
}

// Calculator computes placements. Fields are used as given, so a zero
// Margin or MinSpace means exactly zero; use DefaultCalculator for the
// standard values.
type Calculator struct {
	Margin   float64
	MinSpace float64
}

// DefaultCalculator uses DefaultMargin and DefaultMinSpace.
var DefaultCalculator = Calculator{Margin: DefaultMargin, MinSpace: DefaultMinSpace}

// Calculate places the popup above rect, or below it when rect.Top leaves
// less than MinSpace above.
func (c Calculator) Calculate(rect Rect) Placement {
	p := Placement{AnchorX: rect.CenterX(), AnchorY: rect.Top - c.Margin}
	if rect.Top < c.MinSpace {
		p.AnchorY = rect.Bottom() + c.Margin
		p.Flip = true
	}
	return p
}

// Calculate uses the default margin and minimum space.
func Calculate(rect Rect) Placement {
	return DefaultCalculator.Calculate(rect)
}
