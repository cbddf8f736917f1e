package editor

import (
	"fmt"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/guides"
	"github.com/dshills/pagecraft/internal/history"
)

// Modifiers are the keys held during a pointer press.
type Modifiers struct {
	Shift bool
	Meta  bool
}

// State is the gesture state.
type State int

const (
	StateIdle     State = iota
	StatePressed        // pressed on an element, not yet moved
	StateDragging       // moving the selection
	StateMarquee        // pressed on empty canvas
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePressed:
		return "pressed"
	case StateDragging:
		return "dragging"
	case StateMarquee:
		return "marquee"
	default:
		return "idle"
	}
}

// gesture is the transient state of one press-move-release sequence.
type gesture struct {
	state State
	press geometry.Point

	// Drag
	ids         []string
	startRects  map[string]geometry.Rect // parent frame
	startBounds geometry.Rect            // canvas-local
	delta       geometry.Point

	// Marquee
	additive bool
	moved    bool
}

// State returns the current gesture state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gesture.state
}

// PointerDown starts a gesture at p.
func (s *Session) PointerDown(p geometry.Point, mods Modifiers) {
	s.cancelGesture()

	hit, ok := s.HitTest(p)
	if !ok {
		additive := mods.Shift || mods.Meta
		s.Selection.BeginMarquee(p, additive)
		s.mu.Lock()
		s.gesture = gesture{state: StateMarquee, press: p, additive: additive}
		s.mu.Unlock()
		return
	}

	switch {
	case mods.Meta:
		s.Selection.Toggle(hit)
		return
	case mods.Shift:
		if anchor := s.Selection.Anchor(); anchor != "" {
			s.Selection.SelectRange(anchor, hit)
		} else {
			s.Selection.SelectSingle(hit)
		}
		return
	case !s.Selection.Contains(hit):
		s.Selection.SelectSingle(hit)
	}

	s.beginDrag(p)
}

// beginDrag records the selection roots and their rects so the drag can be
// applied from a fixed origin and cancelled.
func (s *Session) beginDrag(p geometry.Point) {
	// A pending nudge must not absorb this drag.
	s.History.Flush()

	ids := s.Ops.Roots()
	start := make(map[string]geometry.Rect, len(ids))
	abs := make([]geometry.Rect, 0, len(ids))
	for _, id := range ids {
		r, ok := s.Scene.Rect(id)
		if !ok {
			continue
		}
		start[id] = r
		a, _ := s.Scene.AbsoluteRect(id)
		abs = append(abs, a)
	}
	bounds, _ := geometry.Bounds(abs)

	s.mu.Lock()
	s.gesture = gesture{
		state:       StatePressed,
		press:       p,
		ids:         ids,
		startRects:  start,
		startBounds: bounds,
	}
	s.mu.Unlock()
}

// PointerMove continues the gesture at p.
func (s *Session) PointerMove(p geometry.Point) {
	s.mu.Lock()
	state := s.gesture.state
	s.mu.Unlock()

	switch state {
	case StatePressed, StateDragging:
		s.dragTo(p)
	case StateMarquee:
		s.Selection.UpdateMarqueeTo(p)
		s.mu.Lock()
		s.gesture.moved = s.gesture.moved || p != s.gesture.press
		s.mu.Unlock()
	}
}

// dragTo moves the dragged elements so their bounds follow the pointer,
// snapping the bounds to guides when enabled.
func (s *Session) dragTo(p geometry.Point) {
	s.mu.Lock()
	g := s.gesture
	snap := s.snapEnabled
	s.mu.Unlock()

	raw := p.Sub(g.press)
	if g.state == StatePressed && raw.IsZero() {
		return
	}

	delta := raw
	if snap {
		moved := g.startBounds.Translate(raw.X, raw.Y)
		snapped, _ := s.Guides.SnapToGuides(moved, s.candidates(g.ids))
		delta = geometry.Point{X: raw.X + snapped.X - moved.X, Y: raw.Y + snapped.Y - moved.Y}
	}

	for _, id := range g.ids {
		r, ok := g.startRects[id]
		if !ok {
			continue
		}
		if err := s.Scene.SetRect(id, r.Translate(delta.X, delta.Y)); err != nil {
			s.logger.Warn("drag: element vanished", "id", id, "err", err)
		}
	}

	s.mu.Lock()
	s.gesture.state = StateDragging
	s.gesture.delta = delta
	s.mu.Unlock()
}

// candidates returns the snap candidates for dragging ids: the selectable
// siblings of each dragged element that are not themselves dragged.
func (s *Session) candidates(ids []string) []guides.Candidate {
	exclude := make(map[string]bool, len(ids))
	parents := make([]string, 0, 1)
	seen := make(map[string]bool)
	for _, id := range ids {
		exclude[id] = true
		parent, ok := s.Scene.Parent(id)
		if ok && !seen[parent] {
			seen[parent] = true
			parents = append(parents, parent)
		}
	}
	var out []guides.Candidate
	for _, parent := range parents {
		out = append(out, guides.Siblings(s.Scene, parent, exclude)...)
	}
	return out
}

// PointerUp ends the gesture at p.
func (s *Session) PointerUp(p geometry.Point) {
	s.mu.Lock()
	state := s.gesture.state
	s.mu.Unlock()

	switch state {
	case StatePressed:
		s.reset()

	case StateDragging:
		s.dragTo(p)
		s.Guides.Clear()

		s.mu.Lock()
		g := s.gesture
		s.mu.Unlock()

		if g.delta.IsZero() {
			s.restoreDrag(g)
		} else {
			s.History.SaveDebounced(history.Meta{
				Type:        "move",
				Description: fmt.Sprintf("Move %d element(s)", len(g.ids)),
			})
		}
		s.reset()

	case StateMarquee:
		s.mu.Lock()
		g := s.gesture
		s.mu.Unlock()

		switch {
		case g.moved || p != g.press:
			s.Selection.UpdateMarqueeTo(p)
			s.Selection.EndMarquee()
		case g.additive:
			s.Selection.CancelMarquee()
		default:
			s.Selection.CancelMarquee()
			s.Selection.Clear()
		}
		s.reset()
	}
}

// Escape cancels a drag or marquee in progress. With no gesture in progress
// it clears the selection.
func (s *Session) Escape() {
	if !s.cancelGesture() {
		s.Selection.Clear()
	}
}

// cancelGesture discards the gesture in progress and reports whether there
// was one.
func (s *Session) cancelGesture() bool {
	s.mu.Lock()
	g := s.gesture
	s.mu.Unlock()

	switch g.state {
	case StatePressed:
	case StateDragging:
		s.restoreDrag(g)
		s.Guides.Clear()
	case StateMarquee:
		s.Selection.CancelMarquee()
	default:
		return false
	}
	s.reset()
	return true
}

// restoreDrag puts dragged elements back at their starting rects.
func (s *Session) restoreDrag(g gesture) {
	for id, r := range g.startRects {
		if !s.Scene.Has(id) {
			continue
		}
		if err := s.Scene.SetRect(id, r); err != nil {
			s.logger.Warn("drag cancel: restore failed", "id", id, "err", err)
		}
	}
	s.logger.Debug("drag cancelled", "elements", len(g.startRects))
}

func (s *Session) reset() {
	s.mu.Lock()
	s.gesture = gesture{}
	s.mu.Unlock()
}
