package geometry

import "math"

// DefaultSnapThreshold is the snapping distance in canvas pixels.
const DefaultSnapThreshold = 5.0

// Snapper tests coordinates against a snap threshold.
type Snapper struct {
	Threshold float64
}

// NewSnapper creates a snapper. A non-positive threshold selects the default.
func NewSnapper(threshold float64) Snapper {
	if threshold <= 0 {
		threshold = DefaultSnapThreshold
	}
	return Snapper{Threshold: threshold}
}

// ShouldSnap reports whether |a-b| is within the threshold.
func (s Snapper) ShouldSnap(a, b float64) bool {
	return math.Abs(a-b) <= s.Threshold
}

// Snap returns target when value is within the threshold, else value.
func (s Snapper) Snap(value, target float64) float64 {
	if s.ShouldSnap(value, target) {
		return target
	}
	return value
}

// Points holds candidate snap coordinates per axis.
type Points struct {
	X []float64
	Y []float64
}

// SnapPoints collects the left, right and center x of every rect in others
// followed by the canvas left, right and center, and the analogous y values.
// Rects in others identical to element are skipped so callers may pass the
// full sibling list.
func SnapPoints(element Rect, others []Rect, canvas Rect) Points {
	pts := Points{
		X: make([]float64, 0, 3*len(others)+3),
		Y: make([]float64, 0, 3*len(others)+3),
	}
	for _, o := range others {
		if o == element {
			continue
		}
		pts.X = append(pts.X, o.Left(), o.Right(), o.CenterX())
		pts.Y = append(pts.Y, o.Top(), o.Bottom(), o.CenterY())
	}
	pts.X = append(pts.X, canvas.Left(), canvas.Right(), canvas.CenterX())
	pts.Y = append(pts.Y, canvas.Top(), canvas.Bottom(), canvas.CenterY())
	return pts
}

// Nearest returns the candidate closest to v within the threshold.
func (s Snapper) Nearest(v float64, candidates []float64) (float64, bool) {
	best, found := 0.0, false
	for _, c := range candidates {
		if !s.ShouldSnap(v, c) {
			continue
		}
		if !found || math.Abs(v-c) < math.Abs(v-best) {
			best, found = c, true
		}
	}
	return best, found
}
