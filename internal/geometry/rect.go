package geometry

import (
	"fmt"
	"math"
)

// Point is a position on the canvas.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// IsZero reports whether p is the origin.
func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// Rect is an axis-aligned rectangle. W and H are expected to be non-negative.
type Rect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// R is shorthand for constructing a Rect.
func R(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// RectFromPoints returns the rect spanned by two corner points in any order.
func RectFromPoints(a, b Point) Rect {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Left returns the left edge.
func (r Rect) Left() float64 { return r.X }

// Right returns the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Top returns the top edge.
func (r Rect) Top() float64 { return r.Y }

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// CenterX returns the horizontal center.
func (r Rect) CenterX() float64 { return r.X + r.W/2 }

// CenterY returns the vertical center.
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// Origin returns the top-left corner.
func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// MoveTo returns r with its origin at p.
func (r Rect) MoveTo(p Point) Rect {
	return Rect{X: p.X, Y: p.Y, W: r.W, H: r.H}
}

// Expand grows r by pad on every side.
func (r Rect) Expand(pad float64) Rect {
	return Rect{X: r.X - pad, Y: r.Y - pad, W: r.W + 2*pad, H: r.H + 2*pad}
}

// Union returns the smallest rect containing both r and o.
func (r Rect) Union(o Rect) Rect {
	left := math.Min(r.Left(), o.Left())
	top := math.Min(r.Top(), o.Top())
	right := math.Max(r.Right(), o.Right())
	bottom := math.Max(r.Bottom(), o.Bottom())
	return Rect{X: left, Y: top, W: right - left, H: bottom - top}
}

// Intersects reports whether r and o overlap. Touching edges count as
// overlap.
func (r Rect) Intersects(o Rect) bool {
	return !(r.Right() < o.Left() ||
		r.Left() > o.Right() ||
		r.Bottom() < o.Top() ||
		r.Top() > o.Bottom())
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left() && p.X <= r.Right() && p.Y >= r.Top() && p.Y <= r.Bottom()
}

// ApproxEqual reports whether two rects match within eps on every field.
func (r Rect) ApproxEqual(o Rect, eps float64) bool {
	return math.Abs(r.X-o.X) <= eps &&
		math.Abs(r.Y-o.Y) <= eps &&
		math.Abs(r.W-o.W) <= eps &&
		math.Abs(r.H-o.H) <= eps
}

// String returns a compact representation for logs.
func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.W, r.H)
}

// Bounds returns the bounding box of rects: min left, max right, min top,
// max bottom. The second result is false when rects is empty.
func Bounds(rects []Rect) (Rect, bool) {
	if len(rects) == 0 {
		return Rect{}, false
	}
	b := rects[0]
	for _, r := range rects[1:] {
		b = b.Union(r)
	}
	return b, true
}
