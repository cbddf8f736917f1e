// Package geometry provides the typed geometry records used by the editing
// engine and the stateless alignment functions that operate on them.
//
// All rectangles handled here are expressed in a single coordinate space.
// Callers are responsible for converting element geometry into that space
// (see scene.Accessor.AbsoluteRect) before calling into this package.
//
// # Alignment
//
// Align moves every rect so that the chosen edge (or center) matches the
// corresponding edge of the set's bounding box:
//
//	out, err := geometry.Align(rects, geometry.AlignLeft)
//
// Each rect is translated by target - edge, so only the aligned axis changes.
//
// # Distribution
//
// Distribute spaces three or more rects so the gaps between consecutive rects
// along an axis are equal. The first and last rect keep their positions.
//
// # Snapping
//
// A Snapper decides whether two coordinates are close enough to be treated as
// aligned, and SnapPoints collects the candidate coordinates of other rects
// and of the canvas.
package geometry
