// Package group creates and dissolves group elements.
//
// A group is a synthetic scene element whose children store their geometry
// relative to the group's top-left corner. Grouping converts each child
// position with childPos - groupTopLeft; dissolving adds the offset back, so
// group followed by ungroup is an identity on absolute positions.
//
// The group rect is the union of its children's bounds plus a fixed padding,
// computed when the group is created. Moving a child later does not resize
// the group.
//
// A group must have at least two children. Removing a child that leaves a
// single one dissolves the group.
package group

import (
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/notify"
	"github.com/dshills/pagecraft/internal/scene"
)

const source = "group"

// DefaultPadding is the space added around the children's bounds.
const DefaultPadding = 10.0

// MinChildren is the smallest child count a group may have.
const MinChildren = 2

// Common errors for group operations.
var (
	ErrTooFewElements = errors.New("a group needs at least two elements")
	ErrLocked         = errors.New("element is locked")
	ErrMixedParents   = errors.New("elements do not share a parent")
	ErrNotGroup       = errors.New("element is not a group")
	ErrNotFound       = errors.New("element not found")
	ErrAlreadyMember  = errors.New("element is already in the group")
	ErrNotMember      = errors.New("element is not in the group")
)

// Manager creates and destroys groups in a scene.
type Manager struct {
	scene    scene.Accessor
	padding  float64
	notifier *notify.Notifier
	logger   *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithPadding sets the padding added around grouped bounds.
func WithPadding(p float64) Option {
	return func(m *Manager) {
		if p >= 0 {
			m.padding = p
		}
	}
}

// WithNotifier publishes group changes on n.
func WithNotifier(n *notify.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a group manager over acc.
func New(acc scene.Accessor, opts ...Option) *Manager {
	m := &Manager{
		scene:   acc,
		padding: DefaultPadding,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notify.New()
	}
	return m
}

// Notifier returns the notifier group changes are published on.
func (m *Manager) Notifier() *notify.Notifier {
	return m.notifier
}

// Padding returns the configured padding.
func (m *Manager) Padding() float64 {
	return m.padding
}

// SetPadding changes the padding used for future groups.
func (m *Manager) SetPadding(p float64) {
	if p >= 0 {
		m.padding = p
	}
}

// CreateGroup groups the elements in ids and returns the new group id.
// Ids that no longer resolve are skipped. The remaining elements must number
// at least two, be unlocked and share a parent. Children keep their relative
// z-order and the group takes the z-position of the front-most member.
func (m *Manager) CreateGroup(ids []string, name string) (string, error) {
	type member struct {
		id    string
		index int
	}

	var (
		members []member
		parent  string
		rects   []geometry.Rect
	)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		el, ok := m.scene.Get(id)
		if !ok {
			m.logger.Warn("group: skipping missing element", "id", id)
			continue
		}
		if el.Locked {
			return "", fmt.Errorf("%w: %s", ErrLocked, id)
		}
		if len(members) == 0 {
			parent = el.ParentID
		} else if el.ParentID != parent {
			return "", fmt.Errorf("%w: %s", ErrMixedParents, id)
		}
		members = append(members, member{id: id, index: m.scene.IndexOf(id)})
		rects = append(rects, el.Rect)
	}
	if len(members) < MinChildren {
		return "", fmt.Errorf("%w: got %d", ErrTooFewElements, len(members))
	}

	// Member rects are all in the parent's frame, so the group rect is too.
	bounds, _ := geometry.Bounds(rects)
	groupRect := bounds.Expand(m.padding)

	slices.SortFunc(members, func(a, b member) int { return a.index - b.index })
	front := members[len(members)-1].index

	groupID := m.scene.NewID()
	if name == "" {
		name = "Group"
	}
	grp := scene.Element{
		ID:   groupID,
		Kind: scene.KindGroup,
		Name: name,
		Rect: groupRect,
	}
	// Insert above the front-most member; the members leave the list below.
	if err := m.scene.Insert(grp, parent, front+1); err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}

	childIDs := make([]string, 0, len(members))
	for _, mem := range members {
		if err := m.scene.Reparent(mem.id, groupID, -1); err != nil {
			return "", fmt.Errorf("create group: %w", err)
		}
		childIDs = append(childIDs, mem.id)
	}

	m.logger.Debug("group created", "group", groupID, "children", childIDs, "rect", groupRect)
	m.notifier.Publish(notify.Change{Topic: notify.TopicGroupCreated, Source: source, IDs: append([]string{groupID}, childIDs...)})
	return groupID, nil
}

// DestroyGroup dissolves groupID. Its children move to the group's parent at
// the group's z-position, keeping their order and absolute positions. It
// returns the former children.
func (m *Manager) DestroyGroup(groupID string) ([]string, error) {
	grp, ok := m.scene.Get(groupID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, groupID)
	}
	if !grp.IsGroup() {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, groupID)
	}

	index := m.scene.IndexOf(groupID)
	children := m.scene.Children(groupID)
	for i, id := range children {
		// childPos + groupOffset, handled by the scene's frame conversion.
		if err := m.scene.Reparent(id, grp.ParentID, index+i); err != nil {
			return nil, fmt.Errorf("destroy group: %w", err)
		}
	}
	if _, err := m.scene.Remove(groupID); err != nil {
		return nil, fmt.Errorf("destroy group: %w", err)
	}

	m.logger.Debug("group destroyed", "group", groupID, "children", children)
	m.notifier.Publish(notify.Change{Topic: notify.TopicGroupDestroyed, Source: source, IDs: append([]string{groupID}, children...)})
	return children, nil
}

// AddToGroup moves id into groupID as its front-most child. The group rect
// is not resized.
func (m *Manager) AddToGroup(groupID, id string) error {
	grp, ok := m.scene.Get(groupID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, groupID)
	}
	if !grp.IsGroup() {
		return fmt.Errorf("%w: %s", ErrNotGroup, groupID)
	}
	el, ok := m.scene.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if el.Locked {
		return fmt.Errorf("%w: %s", ErrLocked, id)
	}
	if el.ParentID == groupID {
		return fmt.Errorf("%w: %s", ErrAlreadyMember, id)
	}
	if err := m.scene.Reparent(id, groupID, -1); err != nil {
		return fmt.Errorf("add to group: %w", err)
	}

	m.notifier.Publish(notify.Change{Topic: notify.TopicGroupChanged, Source: source, IDs: []string{groupID, id}})
	return nil
}

// RemoveFromGroup moves id out of groupID to the group's parent, directly
// above the group. When fewer than two children remain the group is
// dissolved; the second result reports that.
func (m *Manager) RemoveFromGroup(groupID, id string) (bool, error) {
	grp, ok := m.scene.Get(groupID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, groupID)
	}
	if !grp.IsGroup() {
		return false, fmt.Errorf("%w: %s", ErrNotGroup, groupID)
	}
	if !slices.Contains(grp.Children, id) {
		return false, fmt.Errorf("%w: %s", ErrNotMember, id)
	}

	index := m.scene.IndexOf(groupID)
	if err := m.scene.Reparent(id, grp.ParentID, index+1); err != nil {
		return false, fmt.Errorf("remove from group: %w", err)
	}
	m.notifier.Publish(notify.Change{Topic: notify.TopicGroupChanged, Source: source, IDs: []string{groupID, id}})

	dissolved, err := m.Reconcile(groupID)
	return dissolved, err
}

// Reconcile dissolves groupID when it has fewer than two children. It
// reports whether the group was dissolved. A missing group is not an error.
func (m *Manager) Reconcile(groupID string) (bool, error) {
	grp, ok := m.scene.Get(groupID)
	if !ok || !grp.IsGroup() {
		return false, nil
	}
	if len(grp.Children) >= MinChildren {
		return false, nil
	}
	if _, err := m.DestroyGroup(groupID); err != nil {
		return false, err
	}
	m.logger.Debug("group auto-dissolved", "group", groupID)
	return true, nil
}

// IsGroup reports whether id is a group.
func (m *Manager) IsGroup(id string) bool {
	el, ok := m.scene.Get(id)
	return ok && el.IsGroup()
}

// IsInGroup reports whether any ancestor of id is a group.
func (m *Manager) IsInGroup(id string) bool {
	_, ok := m.GroupOf(id)
	return ok
}

// GroupOf returns the nearest group ancestor of id.
func (m *Manager) GroupOf(id string) (string, bool) {
	parent, ok := m.scene.Parent(id)
	for ok && parent != scene.RootID {
		el, found := m.scene.Get(parent)
		if !found {
			return "", false
		}
		if el.IsGroup() {
			return parent, true
		}
		parent, ok = el.ParentID, true
	}
	return "", false
}

// OutermostGroup returns the top-level group containing id.
func (m *Manager) OutermostGroup(id string) (string, bool) {
	found := ""
	cur := id
	for {
		g, ok := m.GroupOf(cur)
		if !ok {
			break
		}
		found, cur = g, g
	}
	return found, found != ""
}
