// Package guides computes smart alignment guides while elements are dragged.
//
// A guide is a full-span line at an x coordinate (vertical guide) or a y
// coordinate (horizontal guide) where an edge or center of the dragged
// bounds lines up, within the snap threshold, with the same edge or center
// of a sibling or of the canvas. Guides are transient: they are recomputed
// every drag frame and cleared when the drag ends.
package guides

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/notify"
	"github.com/dshills/pagecraft/internal/scene"
)

const source = "guides"

// Orientation is the direction a guide line runs.
type Orientation int

const (
	// Vertical guides mark an x coordinate.
	Vertical Orientation = iota
	// Horizontal guides mark a y coordinate.
	Horizontal
)

// String returns the orientation name.
func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// Edge identifies which part of the bounds matched.
type Edge int

const (
	EdgeStart  Edge = iota // left or top
	EdgeEnd                // right or bottom
	EdgeCenter             // centerX or centerY
)

// String returns the edge name.
func (e Edge) String() string {
	switch e {
	case EdgeStart:
		return "start"
	case EdgeEnd:
		return "end"
	default:
		return "center"
	}
}

// Guide is a single alignment line.
type Guide struct {
	Orientation Orientation
	Position    float64
	Edge        Edge
	// SourceID is the matched element, empty for the canvas.
	SourceID string
}

// Candidate is an element guides may align to, in canvas-local coordinates.
type Candidate struct {
	ID   string
	Rect geometry.Rect
}

// Engine computes guides and snap targets. It keeps the last computed set
// for renderers.
type Engine struct {
	mu      sync.Mutex
	snapper geometry.Snapper
	canvas  geometry.Rect
	current []Guide

	notifier *notify.Notifier
	logger   *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the snap threshold in canvas pixels.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		e.snapper = geometry.NewSnapper(t)
	}
}

// WithNotifier publishes guide updates on n.
func WithNotifier(n *notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates a guide engine for a canvas.
func New(canvas geometry.Rect, opts ...Option) *Engine {
	e := &Engine{
		snapper: geometry.NewSnapper(geometry.DefaultSnapThreshold),
		canvas:  canvas,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = notify.New()
	}
	return e
}

// Notifier returns the notifier guide changes are published on.
func (e *Engine) Notifier() *notify.Notifier {
	return e.notifier
}

// Threshold returns the snap threshold.
func (e *Engine) Threshold() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapper.Threshold
}

// SetThreshold changes the snap threshold.
func (e *Engine) SetThreshold(t float64) {
	e.mu.Lock()
	e.snapper = geometry.NewSnapper(t)
	e.mu.Unlock()
}

// SetCanvas changes the canvas rect.
func (e *Engine) SetCanvas(canvas geometry.Rect) {
	e.mu.Lock()
	e.canvas = canvas
	e.mu.Unlock()
}

// Canvas returns the canvas rect.
func (e *Engine) Canvas() geometry.Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canvas
}

// Compute returns the guides for dragged against candidates and the canvas,
// in scan order, and stores them as the current set.
func (e *Engine) Compute(dragged geometry.Rect, candidates []Candidate) []Guide {
	e.mu.Lock()
	guides := e.scanLocked(dragged, candidates)
	e.current = guides
	e.mu.Unlock()

	e.publish(guides)
	return guides
}

// SnapToGuides moves dragged onto the first matching candidate per axis, in
// scan order, and returns the snapped rect with the guides computed at the
// snapped position. The guides become the current set.
func (e *Engine) SnapToGuides(dragged geometry.Rect, candidates []Candidate) (geometry.Rect, []Guide) {
	e.mu.Lock()
	matches := e.scanLocked(dragged, candidates)

	snapped := dragged
	var doneX, doneY bool
	for _, g := range matches {
		switch {
		case g.Orientation == Vertical && !doneX:
			snapped.X += g.Position - edgeValue(dragged, g.Orientation, g.Edge)
			doneX = true
		case g.Orientation == Horizontal && !doneY:
			snapped.Y += g.Position - edgeValue(dragged, g.Orientation, g.Edge)
			doneY = true
		}
	}

	guides := matches
	if doneX || doneY {
		guides = e.scanLocked(snapped, candidates)
	}
	e.current = guides
	e.mu.Unlock()

	if doneX || doneY {
		e.logger.Debug("snapped", "from", dragged, "to", snapped)
	}
	e.publish(guides)
	return snapped, guides
}

// Current returns the last computed guides.
func (e *Engine) Current() []Guide {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Guide, len(e.current))
	copy(out, e.current)
	return out
}

// Clear drops the current guides.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()
	e.notifier.Emit(notify.TopicGuidesCleared, source)
}

// scanLocked tests the same-edge pairs of dragged against each candidate and
// then the canvas. Duplicate lines keep their first source.
func (e *Engine) scanLocked(dragged geometry.Rect, candidates []Candidate) []Guide {
	var guides []Guide
	seen := make(map[[2]float64]bool)

	test := func(id string, r geometry.Rect) {
		for _, o := range []Orientation{Vertical, Horizontal} {
			for _, edge := range []Edge{EdgeStart, EdgeEnd, EdgeCenter} {
				target := edgeValue(r, o, edge)
				if !e.snapper.ShouldSnap(edgeValue(dragged, o, edge), target) {
					continue
				}
				key := [2]float64{float64(o), target}
				if seen[key] {
					continue
				}
				seen[key] = true
				guides = append(guides, Guide{Orientation: o, Position: target, Edge: edge, SourceID: id})
			}
		}
	}

	for _, c := range candidates {
		test(c.ID, c.Rect)
	}
	test("", e.canvas)
	return guides
}

func (e *Engine) publish(guides []Guide) {
	e.notifier.Publish(notify.Change{
		Topic:  notify.TopicGuidesUpdated,
		Source: source,
		Detail: guides,
	})
}

func edgeValue(r geometry.Rect, o Orientation, edge Edge) float64 {
	if o == Vertical {
		switch edge {
		case EdgeStart:
			return r.Left()
		case EdgeEnd:
			return r.Right()
		default:
			return r.CenterX()
		}
	}
	switch edge {
	case EdgeStart:
		return r.Top()
	case EdgeEnd:
		return r.Bottom()
	default:
		return r.CenterY()
	}
}

// Siblings returns the selectable children of parentID, excluding ids in
// exclude, as candidates in canvas-local coordinates.
func Siblings(acc scene.Accessor, parentID string, exclude map[string]bool) []Candidate {
	var out []Candidate
	for _, id := range acc.Children(parentID) {
		if exclude[id] || !acc.Selectable(id) {
			continue
		}
		r, ok := acc.AbsoluteRect(id)
		if !ok {
			continue
		}
		out = append(out, Candidate{ID: id, Rect: r})
	}
	return out
}
