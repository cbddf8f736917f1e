package batch

import (
	"fmt"
	"strings"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/scene"
)

// ApplyStyle sets property to value on every selected element. An empty
// value removes the property.
func (o *Operations) ApplyStyle(property, value string) Result {
	const action = "style"
	o.begin()

	live, skipped := o.resolve()
	if len(live) == 0 {
		return o.noop(action, "Nothing selected", skipped)
	}
	if property == "" {
		return o.noop(action, "No style property given", skipped)
	}

	affected := make([]string, 0, len(live))
	for _, id := range live {
		if err := o.scene.SetStyle(id, property, value); err != nil {
			o.logger.Warn("style failed", "id", id, "err", err)
			skipped = append(skipped, id)
			continue
		}
		affected = append(affected, id)
	}
	return o.commit(action, fmt.Sprintf("Set %s on %s", property, plural(len(affected), "element")), affected, skipped)
}

// DeleteSelected removes the selected elements and their subtrees. Groups
// left with fewer than two children are dissolved.
func (o *Operations) DeleteSelected() Result {
	const action = "delete"
	o.begin()

	live, skipped := o.resolve()
	ids := o.roots(live)
	if len(ids) == 0 {
		return o.noop(action, "Nothing selected", skipped)
	}

	var affected []string
	deleted := 0
	parents := make(map[string]bool)
	for _, id := range ids {
		parent, _ := o.scene.Parent(id)
		removed, err := o.scene.Remove(id)
		if err != nil {
			o.logger.Warn("delete failed", "id", id, "err", err)
			skipped = append(skipped, id)
			continue
		}
		deleted++
		affected = append(affected, removed...)
		if parent != scene.RootID {
			parents[parent] = true
		}
	}
	for parent := range parents {
		o.reconcileUp(parent)
	}
	o.selection.Prune()

	return o.commit(action, fmt.Sprintf("Delete %s", plural(deleted, "element")), affected, skipped)
}

// DuplicateSelected copies the selected elements with fresh ids, shifted by
// the duplicate offset and placed directly above their originals. The
// copies replace the selection.
func (o *Operations) DuplicateSelected() Result {
	const action = "duplicate"
	o.begin()

	live, skipped := o.resolve()
	ids := o.roots(live)
	if len(ids) == 0 {
		return o.noop(action, "Nothing selected", skipped)
	}

	o.mu.Lock()
	offset := o.duplicateOffset
	o.mu.Unlock()

	var copies []string
	for _, id := range o.sortByIndex(ids) {
		parent, _ := o.scene.Parent(id)
		cid, err := o.copySubtree(id, parent, o.scene.IndexOf(id)+1, offset)
		if err != nil {
			o.logger.Warn("duplicate failed", "id", id, "err", err)
			skipped = append(skipped, id)
			continue
		}
		copies = append(copies, cid)
	}
	if len(copies) == 0 {
		return o.noop(action, "Nothing to duplicate", skipped)
	}
	o.selection.Set(copies)

	return o.commit(action, fmt.Sprintf("Duplicate %s", plural(len(copies), "element")), copies, skipped)
}

// copySubtree inserts a deep copy of id under parent at index. Only the
// copied root is offset; descendants keep their group-relative rects.
func (o *Operations) copySubtree(id, parent string, index int, offset geometry.Point) (string, error) {
	el, ok := o.scene.Get(id)
	if !ok {
		return "", fmt.Errorf("copy %q: %w", id, scene.ErrNotFound)
	}
	dup := el.Clone()
	dup.ID = o.scene.NewID()
	dup.Rect = dup.Rect.Translate(offset.X, offset.Y)
	if err := o.scene.Insert(dup, parent, index); err != nil {
		return "", err
	}
	for _, child := range el.Children {
		if _, err := o.copySubtree(child, dup.ID, -1, geometry.Point{}); err != nil {
			return "", err
		}
	}
	return dup.ID, nil
}

// LockSelected locks the selected elements. Locked elements leave the
// selection.
func (o *Operations) LockSelected() Result {
	live, skipped := o.resolve()
	return o.setFlag("lock", live, skipped, o.scene.SetLocked, true)
}

// HideSelected hides the selected elements. Hidden elements leave the
// selection.
func (o *Operations) HideSelected() Result {
	live, skipped := o.resolve()
	return o.setFlag("hide", live, skipped, o.scene.SetHidden, true)
}

// UnlockSelected unlocks locked descendants of the selected elements.
// Locked elements cannot themselves be selected; use Unlock for those.
func (o *Operations) UnlockSelected() Result {
	live, skipped := o.resolve()
	if len(live) == 0 {
		return o.noop("unlock", "Nothing selected", skipped)
	}
	targets := o.descendants(live, func(el scene.Element) bool { return el.Locked })
	if len(targets) == 0 {
		return o.noop("unlock", "Nothing locked in the selection", skipped)
	}
	return o.setFlag("unlock", targets, skipped, o.scene.SetLocked, false)
}

// ShowSelected shows hidden descendants of the selected elements. Hidden
// elements cannot themselves be selected; use Show for those.
func (o *Operations) ShowSelected() Result {
	live, skipped := o.resolve()
	if len(live) == 0 {
		return o.noop("show", "Nothing selected", skipped)
	}
	targets := o.descendants(live, func(el scene.Element) bool { return el.Hidden })
	if len(targets) == 0 {
		return o.noop("show", "Nothing hidden in the selection", skipped)
	}
	return o.setFlag("show", targets, skipped, o.scene.SetHidden, false)
}

// Lock locks ids regardless of the selection.
func (o *Operations) Lock(ids ...string) Result {
	live, skipped := o.split(ids)
	return o.setFlag("lock", live, skipped, o.scene.SetLocked, true)
}

// Unlock unlocks ids regardless of the selection.
func (o *Operations) Unlock(ids ...string) Result {
	live, skipped := o.split(ids)
	return o.setFlag("unlock", live, skipped, o.scene.SetLocked, false)
}

// Hide hides ids regardless of the selection.
func (o *Operations) Hide(ids ...string) Result {
	live, skipped := o.split(ids)
	return o.setFlag("hide", live, skipped, o.scene.SetHidden, true)
}

// Show shows ids regardless of the selection.
func (o *Operations) Show(ids ...string) Result {
	live, skipped := o.split(ids)
	return o.setFlag("show", live, skipped, o.scene.SetHidden, false)
}

// split separates ids that resolve from ids that do not.
func (o *Operations) split(ids []string) (live, skipped []string) {
	for _, id := range ids {
		if o.scene.Has(id) {
			live = append(live, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	if len(skipped) > 0 {
		o.logger.Warn("skipping stale ids", "ids", skipped)
	}
	return live, skipped
}

// descendants returns the ids below roots whose element satisfies match.
func (o *Operations) descendants(roots []string, match func(scene.Element) bool) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		for _, child := range o.scene.Children(id) {
			if seen[child] {
				continue
			}
			seen[child] = true
			if el, ok := o.scene.Get(child); ok && match(el) {
				out = append(out, child)
			}
			walk(child)
		}
	}
	for _, id := range roots {
		walk(id)
	}
	return out
}

// setFlag applies set(id, value) to ids as one entry.
func (o *Operations) setFlag(action string, ids, skipped []string, set func(string, bool) error, value bool) Result {
	o.begin()
	if len(ids) == 0 {
		return o.noop(action, "Nothing selected", skipped)
	}

	affected := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := set(id, value); err != nil {
			o.logger.Warn(action+" failed", "id", id, "err", err)
			skipped = append(skipped, id)
			continue
		}
		affected = append(affected, id)
	}
	return o.commit(action, fmt.Sprintf("%s %s", titled(action), plural(len(affected), "element")), affected, skipped)
}

func titled(action string) string {
	if action == "" {
		return action
	}
	return strings.ToUpper(action[:1]) + action[1:]
}

// BringToFront moves the selected elements to the top of their sibling
// lists, keeping their relative order.
func (o *Operations) BringToFront() Result {
	const action = "bring-to-front"
	o.begin()

	live, skipped := o.resolve()
	ids := o.roots(live)
	if len(ids) == 0 {
		return o.noop(action, "Nothing selected", skipped)
	}

	affected := o.reorder(o.sortByIndex(ids), -1)
	return o.commit(action, fmt.Sprintf("Bring %s to front", plural(len(affected), "element")), affected, skipped)
}

// SendToBack moves the selected elements to the bottom of their sibling
// lists, keeping their relative order.
func (o *Operations) SendToBack() Result {
	const action = "send-to-back"
	o.begin()

	live, skipped := o.resolve()
	ids := o.roots(live)
	if len(ids) == 0 {
		return o.noop(action, "Nothing selected", skipped)
	}

	sorted := o.sortByIndex(ids)
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	affected := o.reorder(sorted, 0)
	return o.commit(action, fmt.Sprintf("Send %s to back", plural(len(affected), "element")), affected, skipped)
}

func (o *Operations) reorder(ids []string, index int) []string {
	affected := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := o.scene.MoveToIndex(id, index); err != nil {
			o.logger.Warn("reorder failed", "id", id, "err", err)
			continue
		}
		affected = append(affected, id)
	}
	return affected
}
