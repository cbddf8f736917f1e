// Package selection provides the selection model of the editing engine.
//
// A Model owns an ordered set of selected element ids, the mode of the last
// selection gesture and the anchor used for range selection. It never holds
// an id that is locked, hidden (directly or through an ancestor) or no longer
// present in the scene: every mutator filters its input and the model prunes
// itself when the scene reports removals, lock or visibility changes.
//
// Interpreting modifier keys is the caller's job; the model only offers the
// primitive operations.
package selection

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/notify"
	"github.com/dshills/pagecraft/internal/scene"
)

const source = "selection"

// Mode tags how the current selection was produced.
type Mode uint8

const (
	// ModeNone means nothing is selected.
	ModeNone Mode = iota
	// ModeSingle is a replace-with-one selection.
	ModeSingle
	// ModeToggle is an add/remove selection.
	ModeToggle
	// ModeRange is a contiguous anchor-to-target selection.
	ModeRange
	// ModeAll selects every selectable element.
	ModeAll
	// ModeMarquee is a rubber-band selection.
	ModeMarquee
	// ModeMulti is a programmatic multi-element selection.
	ModeMulti
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeSingle:
		return "single"
	case ModeToggle:
		return "toggle"
	case ModeRange:
		return "range"
	case ModeAll:
		return "all"
	case ModeMarquee:
		return "marquee"
	case ModeMulti:
		return "multi"
	default:
		return "unknown"
	}
}

// marquee holds the transient state of a rubber-band gesture.
type marquee struct {
	start    geometry.Point
	rect     geometry.Rect
	additive bool

	// Selection to restore on cancel
	priorIDs    []string
	priorMode   Mode
	priorAnchor string
}

// Model manages the selected element ids.
type Model struct {
	mu sync.RWMutex

	scene scene.Accessor

	ids    []string
	set    map[string]struct{}
	mode   Mode
	anchor string

	marquee *marquee

	notifier *notify.Notifier
	logger   *log.Logger
	sceneSub *notify.Subscription
}

// Option configures a Model.
type Option func(*Model)

// WithNotifier publishes selection changes on n.
func WithNotifier(n *notify.Notifier) Option {
	return func(m *Model) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// sceneNotifier is implemented by scenes that publish their changes.
type sceneNotifier interface {
	Notifier() *notify.Notifier
}

// New creates a selection model over acc. When acc publishes changes the
// model prunes itself on removals, lock and visibility changes and restores.
func New(acc scene.Accessor, opts ...Option) *Model {
	m := &Model{
		scene:  acc,
		set:    make(map[string]struct{}),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notify.New()
	}

	if sn, ok := acc.(sceneNotifier); ok && sn.Notifier() != nil {
		m.sceneSub = sn.Notifier().SubscribeTopic("scene", func(c notify.Change) {
			switch c.Topic {
			case notify.TopicElementRemoved, notify.TopicElementLocked,
				notify.TopicElementHidden, notify.TopicSceneRestored:
				m.Prune()
			}
		})
	}
	return m
}

// Close detaches the model from scene notifications.
func (m *Model) Close() {
	m.sceneSub.Unsubscribe()
}

// Notifier returns the notifier selection changes are published on.
func (m *Model) Notifier() *notify.Notifier {
	return m.notifier
}

// IDs returns the selected ids in selection order.
func (m *Model) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.ids)
}

// Len returns the number of selected ids.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Contains reports whether id is selected.
func (m *Model) Contains(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.set[id]
	return ok
}

// Mode returns the mode of the current selection.
func (m *Model) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Anchor returns the last anchor id used for range selection.
func (m *Model) Anchor() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchor
}

// SelectSingle replaces the selection with id. It returns false and leaves
// the selection unchanged when id is not selectable.
func (m *Model) SelectSingle(id string) bool {
	if !m.scene.Selectable(id) {
		m.logger.Debug("select skipped", "id", id)
		return false
	}

	m.mu.Lock()
	m.replaceLocked([]string{id})
	m.mode = ModeSingle
	m.anchor = id
	m.mu.Unlock()

	m.publish()
	return true
}

// Toggle adds id when absent and removes it when present. It returns false
// when id is absent and not selectable.
func (m *Model) Toggle(id string) bool {
	m.mu.Lock()
	if _, ok := m.set[id]; ok {
		m.removeLocked(id)
		if m.anchor == id {
			m.anchor = ""
		}
	} else {
		if !m.scene.Selectable(id) {
			m.mu.Unlock()
			return false
		}
		m.addLocked(id)
		m.anchor = id
	}
	m.mode = ModeToggle
	if len(m.ids) == 0 {
		m.mode = ModeNone
	}
	m.mu.Unlock()

	m.publish()
	return true
}

// SelectRange selects the contiguous inclusive run of selectable elements
// between anchorID and targetID in scene traversal order. Argument order
// does not matter. It returns false when either end is not selectable.
func (m *Model) SelectRange(anchorID, targetID string) bool {
	order := m.selectableOrder()
	i := slices.Index(order, anchorID)
	j := slices.Index(order, targetID)
	if i < 0 || j < 0 {
		return false
	}
	if i > j {
		i, j = j, i
	}

	m.mu.Lock()
	m.replaceLocked(order[i : j+1])
	m.mode = ModeRange
	m.anchor = anchorID
	m.mu.Unlock()

	m.publish()
	return true
}

// SelectAll selects every selectable element and returns the count.
func (m *Model) SelectAll() int {
	order := m.selectableOrder()

	m.mu.Lock()
	m.replaceLocked(order)
	m.mode = ModeAll
	if len(order) == 0 {
		m.mode = ModeNone
	}
	m.mu.Unlock()

	m.publish()
	return len(order)
}

// Set replaces the selection with the selectable subset of ids.
func (m *Model) Set(ids []string) int {
	keep := make([]string, 0, len(ids))
	for _, id := range ids {
		if m.scene.Selectable(id) {
			keep = append(keep, id)
		}
	}

	m.mu.Lock()
	m.replaceLocked(keep)
	switch len(m.ids) {
	case 0:
		m.mode = ModeNone
	case 1:
		m.mode = ModeSingle
		m.anchor = m.ids[0]
	default:
		m.mode = ModeMulti
		m.anchor = m.ids[0]
	}
	m.mu.Unlock()

	m.publish()
	return len(keep)
}

// Clear empties the selection.
func (m *Model) Clear() {
	m.mu.Lock()
	if len(m.ids) == 0 && m.mode == ModeNone {
		m.mu.Unlock()
		return
	}
	m.replaceLocked(nil)
	m.mode = ModeNone
	m.anchor = ""
	m.mu.Unlock()

	m.publish()
}

// Prune drops ids that are no longer selectable.
func (m *Model) Prune() {
	m.mu.Lock()
	var dropped []string
	kept := m.ids[:0:0]
	for _, id := range m.ids {
		if m.scene.Selectable(id) {
			kept = append(kept, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	if m.anchor != "" && !m.scene.Selectable(m.anchor) {
		m.anchor = ""
	}
	if len(dropped) == 0 {
		m.mu.Unlock()
		return
	}
	m.replaceLocked(kept)
	if len(m.ids) == 0 {
		m.mode = ModeNone
	}
	m.mu.Unlock()

	m.logger.Debug("selection pruned", "dropped", dropped)
	m.publish()
}

// selectableOrder returns the selectable ids in depth-first pre-order.
func (m *Model) selectableOrder() []string {
	all := m.scene.All()
	out := make([]string, 0, len(all))
	for _, el := range all {
		if m.scene.Selectable(el.ID) {
			out = append(out, el.ID)
		}
	}
	return out
}

func (m *Model) replaceLocked(ids []string) {
	m.ids = make([]string, 0, len(ids))
	m.set = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m.addLocked(id)
	}
}

func (m *Model) addLocked(id string) {
	if _, ok := m.set[id]; ok {
		return
	}
	m.set[id] = struct{}{}
	m.ids = append(m.ids, id)
}

func (m *Model) removeLocked(id string) {
	if _, ok := m.set[id]; !ok {
		return
	}
	delete(m.set, id)
	m.ids = slices.DeleteFunc(m.ids, func(v string) bool { return v == id })
}

func (m *Model) publish() {
	m.mu.RLock()
	change := notify.Change{
		Topic:  notify.TopicSelectionChanged,
		Source: source,
		IDs:    slices.Clone(m.ids),
		Detail: m.mode,
	}
	m.mu.RUnlock()
	m.notifier.Publish(change)
}
