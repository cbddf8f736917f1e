package batch

import (
	"fmt"

	"github.com/dshills/pagecraft/internal/scene"
)

// Group wraps the selected elements in a new group and selects it. A
// selected element whose ancestor is also selected is carried along by
// that ancestor.
func (o *Operations) Group(name string) Result {
	const action = "group"
	o.begin()

	live, skipped := o.resolve()
	live = o.roots(live)
	if len(live) < 2 {
		return o.noop(action, "Select at least 2 elements to group", skipped)
	}

	gid, err := o.groups.CreateGroup(live, name)
	if err != nil {
		return o.noop(action, message(err), skipped)
	}
	o.selection.SelectSingle(gid)

	el, _ := o.scene.Get(gid)
	return o.commit(action, fmt.Sprintf("Group %s as %q", plural(len(el.Children), "element"), el.Name), []string{gid}, skipped)
}

// Ungroup dissolves the single selected group and selects its former
// children.
func (o *Operations) Ungroup() Result {
	const action = "ungroup"
	o.begin()

	live, skipped := o.resolve()
	live = o.roots(live)
	if len(live) != 1 || !o.groups.IsGroup(live[0]) {
		return o.noop(action, "Select a single group to ungroup", skipped)
	}

	children, err := o.groups.DestroyGroup(live[0])
	if err != nil {
		return o.noop(action, message(err), skipped)
	}
	o.selection.Set(children)

	return o.commit(action, fmt.Sprintf("Ungroup %s", plural(len(children), "element")), children, skipped)
}

// reconcileUp dissolves groupID if it fell below two children, then checks
// its former parent, since an emptied group removes a child from it.
func (o *Operations) reconcileUp(groupID string) {
	for groupID != scene.RootID {
		parent, ok := o.scene.Parent(groupID)
		dissolved, err := o.groups.Reconcile(groupID)
		if err != nil {
			o.logger.Warn("reconcile failed", "group", groupID, "err", err)
			return
		}
		if !dissolved || !ok {
			return
		}
		groupID = parent
	}
}
