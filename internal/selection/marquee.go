package selection

import (
	"slices"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/notify"
)

// BeginMarquee starts a rubber-band gesture at p. An additive marquee unions
// its hits with the current selection; otherwise the selection is cleared
// first. A gesture already in progress is replaced.
func (m *Model) BeginMarquee(p geometry.Point, additive bool) {
	m.mu.Lock()
	m.marquee = &marquee{
		start:       p,
		rect:        geometry.Rect{X: p.X, Y: p.Y},
		additive:    additive,
		priorIDs:    slices.Clone(m.ids),
		priorMode:   m.mode,
		priorAnchor: m.anchor,
	}
	changed := false
	if !additive && len(m.ids) > 0 {
		m.replaceLocked(nil)
		m.mode = ModeNone
		changed = true
	}
	m.mu.Unlock()

	if changed {
		m.publish()
	}
}

// InMarquee reports whether a rubber-band gesture is active.
func (m *Model) InMarquee() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marquee != nil
}

// MarqueeRect returns the current rubber-band rectangle.
func (m *Model) MarqueeRect() (geometry.Rect, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.marquee == nil {
		return geometry.Rect{}, false
	}
	return m.marquee.rect, true
}

// UpdateMarquee sets the rubber-band rectangle and reselects: every
// selectable element whose absolute bounds intersect rect (edges inclusive),
// plus the prior selection for an additive gesture. It returns the
// resulting selection, or nil when no gesture is active.
func (m *Model) UpdateMarquee(rect geometry.Rect) []string {
	hits := m.hitTest(rect)

	m.mu.Lock()
	if m.marquee == nil {
		m.mu.Unlock()
		return nil
	}
	m.marquee.rect = rect

	var next []string
	if m.marquee.additive {
		next = append(next, m.marquee.priorIDs...)
	}
	next = append(next, hits...)
	m.replaceLocked(next)
	m.mode = ModeMarquee
	if len(m.ids) == 0 {
		m.mode = ModeNone
	}
	out := slices.Clone(m.ids)
	m.mu.Unlock()

	m.notifier.Publish(notify.Change{Topic: notify.TopicMarqueeUpdated, Source: source, IDs: hits, Detail: rect})
	m.publish()
	return out
}

// UpdateMarqueeTo stretches the rubber band from its start point to p.
func (m *Model) UpdateMarqueeTo(p geometry.Point) []string {
	m.mu.RLock()
	if m.marquee == nil {
		m.mu.RUnlock()
		return nil
	}
	start := m.marquee.start
	m.mu.RUnlock()

	return m.UpdateMarquee(geometry.RectFromPoints(start, p))
}

// EndMarquee finalizes the gesture and returns the selection.
func (m *Model) EndMarquee() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marquee == nil {
		return slices.Clone(m.ids)
	}
	m.marquee = nil
	if len(m.ids) > 0 {
		m.anchor = m.ids[0]
	}
	return slices.Clone(m.ids)
}

// CancelMarquee discards the gesture and restores the selection it started
// from, minus anything that stopped being selectable meanwhile.
func (m *Model) CancelMarquee() {
	m.mu.Lock()
	if m.marquee == nil {
		m.mu.Unlock()
		return
	}
	prior := m.marquee
	m.marquee = nil
	m.replaceLocked(prior.priorIDs)
	m.mode = prior.priorMode
	m.anchor = prior.priorAnchor
	m.mu.Unlock()

	m.Prune()
	m.publish()
}

// hitTest returns selectable ids intersecting rect in traversal order.
func (m *Model) hitTest(rect geometry.Rect) []string {
	var hits []string
	for _, id := range m.selectableOrder() {
		r, ok := m.scene.AbsoluteRect(id)
		if ok && r.Intersects(rect) {
			hits = append(hits, id)
		}
	}
	return hits
}
