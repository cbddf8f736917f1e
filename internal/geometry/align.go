package geometry

import (
	"errors"
	"fmt"
	"sort"
)

// Minimum element counts for the alignment operations.
const (
	MinAlign      = 2
	MinDistribute = 3
)

// Common errors for alignment operations.
var (
	ErrTooFewElements = errors.New("too few elements")
	ErrUnknownMode    = errors.New("unknown alignment mode")
	ErrUnknownAxis    = errors.New("unknown axis")
)

// AlignMode selects the edge or center that Align lines up.
type AlignMode uint8

const (
	// AlignLeft lines up left edges on the leftmost edge.
	AlignLeft AlignMode = iota
	// AlignRight lines up right edges on the rightmost edge.
	AlignRight
	// AlignTop lines up top edges on the topmost edge.
	AlignTop
	// AlignBottom lines up bottom edges on the bottommost edge.
	AlignBottom
	// AlignCenterHorizontal lines up horizontal centers on the bounds center.
	AlignCenterHorizontal
	// AlignCenterVertical lines up vertical centers on the bounds center.
	AlignCenterVertical
)

// String returns the mode name.
func (m AlignMode) String() string {
	switch m {
	case AlignLeft:
		return "left"
	case AlignRight:
		return "right"
	case AlignTop:
		return "top"
	case AlignBottom:
		return "bottom"
	case AlignCenterHorizontal:
		return "center-horizontal"
	case AlignCenterVertical:
		return "center-vertical"
	default:
		return "unknown"
	}
}

// ParseAlignMode parses a mode name as produced by AlignMode.String.
func ParseAlignMode(s string) (AlignMode, error) {
	switch s {
	case "left":
		return AlignLeft, nil
	case "right":
		return AlignRight, nil
	case "top":
		return AlignTop, nil
	case "bottom":
		return AlignBottom, nil
	case "center-horizontal", "center-h", "centerx":
		return AlignCenterHorizontal, nil
	case "center-vertical", "center-v", "centery":
		return AlignCenterVertical, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Axis is a layout direction.
type Axis uint8

const (
	// Horizontal is the x axis.
	Horizontal Axis = iota
	// Vertical is the y axis.
	Vertical
)

// String returns the axis name.
func (a Axis) String() string {
	switch a {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return "unknown"
	}
}

// ParseAxis parses an axis name.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "horizontal", "x":
		return Horizontal, nil
	case "vertical", "y":
		return Vertical, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAxis, s)
	}
}

// leading returns the start edge of r along the axis.
func (a Axis) leading(r Rect) float64 {
	if a == Vertical {
		return r.Top()
	}
	return r.Left()
}

// trailing returns the end edge of r along the axis.
func (a Axis) trailing(r Rect) float64 {
	if a == Vertical {
		return r.Bottom()
	}
	return r.Right()
}

// size returns the extent of r along the axis.
func (a Axis) size(r Rect) float64 {
	if a == Vertical {
		return r.H
	}
	return r.W
}

// withLeading returns r moved so its start edge along the axis is v.
func (a Axis) withLeading(r Rect, v float64) Rect {
	if a == Vertical {
		r.Y = v
	} else {
		r.X = v
	}
	return r
}

// Align returns copies of rects aligned according to mode. The result has
// the same order as the input. At least MinAlign rects are required.
func Align(rects []Rect, mode AlignMode) ([]Rect, error) {
	if len(rects) < MinAlign {
		return nil, fmt.Errorf("%w: align needs %d, got %d", ErrTooFewElements, MinAlign, len(rects))
	}

	b, _ := Bounds(rects)
	out := make([]Rect, len(rects))

	for i, r := range rects {
		var dx, dy float64
		switch mode {
		case AlignLeft:
			dx = b.Left() - r.Left()
		case AlignRight:
			dx = b.Right() - r.Right()
		case AlignTop:
			dy = b.Top() - r.Top()
		case AlignBottom:
			dy = b.Bottom() - r.Bottom()
		case AlignCenterHorizontal:
			dx = b.CenterX() - r.CenterX()
		case AlignCenterVertical:
			dy = b.CenterY() - r.CenterY()
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
		}
		out[i] = r.Translate(dx, dy)
	}
	return out, nil
}

// GapPolicy decides what Distribute does when the rects are larger than the
// span between the first and last rect.
type GapPolicy uint8

const (
	// GapOverlap keeps the negative gap, so rects end up overlapping.
	GapOverlap GapPolicy = iota
	// GapClamp floors the gap at zero; the last rect may move past its
	// original trailing edge.
	GapClamp
)

// String returns the policy name.
func (p GapPolicy) String() string {
	switch p {
	case GapOverlap:
		return "overlap"
	case GapClamp:
		return "clamp"
	default:
		return "unknown"
	}
}

// ParseGapPolicy parses a policy name.
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch s {
	case "", "overlap":
		return GapOverlap, nil
	case "clamp":
		return GapClamp, nil
	default:
		return 0, fmt.Errorf("unknown gap policy %q", s)
	}
}

// Distribute returns copies of rects spaced with equal gaps along axis. The
// rects are ordered by leading edge (ties keep input order); the first rect
// stays in place and every following rect starts at the previous trailing
// edge plus the gap. The result has the same order as the input. At least
// MinDistribute rects are required.
func Distribute(rects []Rect, axis Axis, policy GapPolicy) ([]Rect, error) {
	if len(rects) < MinDistribute {
		return nil, fmt.Errorf("%w: distribute needs %d, got %d", ErrTooFewElements, MinDistribute, len(rects))
	}
	if axis != Horizontal && axis != Vertical {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAxis, axis)
	}

	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return axis.leading(rects[order[a]]) < axis.leading(rects[order[b]])
	})

	first := rects[order[0]]
	last := rects[order[len(order)-1]]

	var total float64
	for _, r := range rects {
		total += axis.size(r)
	}
	gap := Gap(axis.leading(first), axis.trailing(last), total, len(rects))
	if gap < 0 && policy == GapClamp {
		gap = 0
	}

	out := make([]Rect, len(rects))
	out[order[0]] = first
	prevTrailing := axis.trailing(first)
	for _, idx := range order[1:] {
		placed := axis.withLeading(rects[idx], prevTrailing+gap)
		out[idx] = placed
		prevTrailing = axis.trailing(placed)
	}
	return out, nil
}

// Gap computes the equal spacing for n items of combined size total laid out
// between start and end. It may be negative.
func Gap(start, end, total float64, n int) float64 {
	if n < 2 {
		return 0
	}
	return (end - start - total) / float64(n-1)
}
