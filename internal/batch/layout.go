package batch

import (
	"fmt"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/history"
	"github.com/dshills/pagecraft/internal/notify"
)

// Align lines up the selected elements on one edge or center of their
// combined bounds.
func (o *Operations) Align(mode geometry.AlignMode) Result {
	const action = "align"
	o.begin()

	live, skipped := o.resolve()
	ids := o.roots(live)
	if len(ids) < geometry.MinAlign {
		return o.noop(action, fmt.Sprintf("Select at least %d elements to align", geometry.MinAlign), skipped)
	}

	aligned, err := geometry.Align(o.absRects(ids), mode)
	if err != nil {
		return o.noop(action, err.Error(), skipped)
	}
	affected := o.applyRects(ids, aligned)

	o.notifier.Publish(notify.Change{Topic: notify.TopicAligned, Source: source, IDs: affected, Detail: mode})
	return o.commit(action, fmt.Sprintf("Align %s (%s)", mode, plural(len(affected), "element")), affected, skipped)
}

// Distribute spaces the selected elements evenly along axis between the
// outermost two.
func (o *Operations) Distribute(axis geometry.Axis) Result {
	const action = "distribute"
	o.begin()

	live, skipped := o.resolve()
	ids := o.roots(live)
	if len(ids) < geometry.MinDistribute {
		return o.noop(action, fmt.Sprintf("Select at least %d elements to distribute", geometry.MinDistribute), skipped)
	}

	o.mu.Lock()
	policy := o.gapPolicy
	o.mu.Unlock()

	spaced, err := geometry.Distribute(o.absRects(ids), axis, policy)
	if err != nil {
		return o.noop(action, err.Error(), skipped)
	}
	affected := o.applyRects(ids, spaced)

	o.notifier.Publish(notify.Change{Topic: notify.TopicDistributed, Source: source, IDs: affected, Detail: axis})
	return o.commit(action, fmt.Sprintf("Distribute %s (%s)", axis, plural(len(affected), "element")), affected, skipped)
}

// MoveSelected translates the selected elements by (dx, dy) as one entry.
func (o *Operations) MoveSelected(dx, dy float64) Result {
	const action = "move"
	o.begin()

	live, skipped := o.resolve()
	ids := o.roots(live)
	if len(ids) == 0 {
		return o.noop(action, "Nothing selected", skipped)
	}
	if dx == 0 && dy == 0 {
		return o.noop(action, "Zero offset", skipped)
	}

	affected := o.translate(ids, dx, dy)
	o.notifier.Publish(notify.Change{Topic: notify.TopicMoved, Source: source, IDs: affected, Detail: geometry.Point{X: dx, Y: dy}})
	return o.commit(action, fmt.Sprintf("Move %s", plural(len(affected), "element")), affected, skipped)
}

// Nudge translates the selected elements by (dx, dy). Nudges arriving within
// the history debounce period are recorded as one entry.
func (o *Operations) Nudge(dx, dy float64) Result {
	const action = "nudge"

	live, skipped := o.resolve()
	ids := o.roots(live)
	if len(ids) == 0 {
		return o.noop(action, "Nothing selected", skipped)
	}
	if dx == 0 && dy == 0 {
		return o.noop(action, "Zero offset", skipped)
	}

	affected := o.translate(ids, dx, dy)
	o.notifier.Publish(notify.Change{Topic: notify.TopicMoved, Source: source, IDs: affected, Detail: geometry.Point{X: dx, Y: dy}})

	msg := fmt.Sprintf("Nudge %s", plural(len(affected), "element"))
	o.history.SaveDebounced(history.Meta{Type: action, Description: msg})
	return Result{Action: action, Applied: true, Message: msg, Affected: affected, Skipped: skipped}
}

// translate moves ids in their own frames. Moving in the parent frame is the
// same translation in canvas space.
func (o *Operations) translate(ids []string, dx, dy float64) []string {
	affected := make([]string, 0, len(ids))
	for _, id := range ids {
		r, ok := o.scene.Rect(id)
		if !ok {
			continue
		}
		if err := o.scene.SetRect(id, r.Translate(dx, dy)); err != nil {
			o.logger.Warn("move failed", "id", id, "err", err)
			continue
		}
		affected = append(affected, id)
	}
	return affected
}

// applyRects stores canvas-local rects for ids and returns the ids that
// were written.
func (o *Operations) applyRects(ids []string, rects []geometry.Rect) []string {
	affected := make([]string, 0, len(ids))
	for i, id := range ids {
		if err := o.setAbs(id, rects[i]); err != nil {
			o.logger.Warn("set rect failed", "id", id, "err", err)
			continue
		}
		affected = append(affected, id)
	}
	return affected
}
