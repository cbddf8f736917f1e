package scene

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/notify"
)

const source = "scene"

// Scene is an in-memory, thread-safe scene store.
type Scene struct {
	mu sync.RWMutex

	elements map[string]*Element
	root     []string
	canvas   geometry.Rect

	newID    func() string
	notifier *notify.Notifier
}

// Option configures a Scene.
type Option func(*Scene)

// WithCanvas sets the canvas size.
func WithCanvas(w, h float64) Option {
	return func(s *Scene) {
		s.canvas = geometry.R(0, 0, w, h)
	}
}

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Scene) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithNotifier publishes scene changes on n instead of a private notifier.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Scene) {
		if n != nil {
			s.notifier = n
		}
	}
}

// New creates an empty scene. The default canvas is 1280x800.
func New(opts ...Option) *Scene {
	s := &Scene{
		elements: make(map[string]*Element),
		canvas:   geometry.R(0, 0, 1280, 800),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.New()
	}
	return s
}

// Notifier returns the notifier scene changes are published on.
func (s *Scene) Notifier() *notify.Notifier {
	return s.notifier
}

// NewID returns a fresh unique id.
func (s *Scene) NewID() string {
	s.mu.RLock()
	gen := s.newID
	s.mu.RUnlock()

	for {
		id := gen()
		if !s.Has(id) && id != RootID {
			return id
		}
	}
}

// Canvas returns the canvas rect.
func (s *Scene) Canvas() geometry.Rect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canvas
}

// Len returns the number of elements.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Get returns a copy of the element.
func (s *Scene) Get(id string) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.elements[id]
	if !ok {
		return Element{}, false
	}
	return el.Clone(), true
}

// Has reports whether id resolves.
func (s *Scene) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.elements[id]
	return ok
}

// All returns every element in depth-first pre-order, back to front within
// each sibling list.
func (s *Scene) All() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Element, 0, len(s.elements))
	s.walkLocked(s.root, func(el *Element) {
		out = append(out, el.Clone())
	})
	return out
}

func (s *Scene) walkLocked(ids []string, fn func(el *Element)) {
	for _, id := range ids {
		el, ok := s.elements[id]
		if !ok {
			continue
		}
		fn(el)
		if len(el.Children) > 0 {
			s.walkLocked(el.Children, fn)
		}
	}
}

// Children returns the child ids of parentID, back to front.
func (s *Scene) Children(parentID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.siblingsLocked(parentID))
}

func (s *Scene) siblingsLocked(parentID string) []string {
	if parentID == RootID {
		return s.root
	}
	if p, ok := s.elements[parentID]; ok {
		return p.Children
	}
	return nil
}

func (s *Scene) setSiblingsLocked(parentID string, ids []string) {
	if parentID == RootID {
		s.root = ids
		return
	}
	if p, ok := s.elements[parentID]; ok {
		p.Children = ids
	}
}

// Parent returns the parent id of an element.
func (s *Scene) Parent(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	if !ok {
		return "", false
	}
	return el.ParentID, true
}

// IndexOf returns the position of id among its siblings, or -1.
func (s *Scene) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	if !ok {
		return -1
	}
	return slices.Index(s.siblingsLocked(el.ParentID), id)
}

// Rect returns the stored, parent-relative rect.
func (s *Scene) Rect(id string) (geometry.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	if !ok {
		return geometry.Rect{}, false
	}
	return el.Rect, true
}

// AbsoluteRect returns the rect of id in canvas coordinates.
func (s *Scene) AbsoluteRect(id string) (geometry.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	if !ok {
		return geometry.Rect{}, false
	}
	o := s.originLocked(el.ParentID)
	return el.Rect.Translate(o.X, o.Y), true
}

// Origin returns the canvas position of the frame children of parentID are
// stored in.
func (s *Scene) Origin(parentID string) geometry.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.originLocked(parentID)
}

func (s *Scene) originLocked(parentID string) geometry.Point {
	var o geometry.Point
	for parentID != RootID {
		p, ok := s.elements[parentID]
		if !ok {
			break
		}
		o = o.Add(p.Rect.Origin())
		parentID = p.ParentID
	}
	return o
}

// SetRect replaces the parent-relative rect of id.
func (s *Scene) SetRect(id string, r geometry.Rect) error {
	s.mu.Lock()
	el, ok := s.elements[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("set rect %q: %w", id, ErrNotFound)
	}
	el.Rect = r
	s.mu.Unlock()

	s.notifier.Publish(notify.Change{Topic: notify.TopicElementUpdated, Source: source, IDs: []string{id}, Detail: r})
	return nil
}

// Insert adds el under parentID at index. A negative or out-of-range index
// appends (front-most). An empty el.ID is assigned a fresh id.
func (s *Scene) Insert(el Element, parentID string, index int) error {
	if el.ID == RootID {
		el.ID = s.NewID()
	}
	if el.Kind == "" {
		el.Kind = KindComponent
	}

	s.mu.Lock()
	if _, exists := s.elements[el.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("insert %q: %w", el.ID, ErrDuplicateID)
	}
	if err := s.checkContainerLocked(parentID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("insert %q: %w", el.ID, err)
	}

	stored := el.Clone()
	stored.ParentID = parentID
	// Children are attached by their own Insert calls.
	stored.Children = nil
	s.elements[stored.ID] = &stored
	s.setSiblingsLocked(parentID, insertAt(s.siblingsLocked(parentID), stored.ID, index))
	s.mu.Unlock()

	s.notifier.Emit(notify.TopicElementInserted, source, stored.ID)
	return nil
}

func (s *Scene) checkContainerLocked(parentID string) error {
	if parentID == RootID {
		return nil
	}
	p, ok := s.elements[parentID]
	if !ok {
		return ErrNotFound
	}
	if !p.IsGroup() {
		return ErrNotContainer
	}
	return nil
}

// Remove deletes id and its whole subtree. It returns the removed ids with
// id first.
func (s *Scene) Remove(id string) ([]string, error) {
	s.mu.Lock()
	el, ok := s.elements[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}

	siblings := s.siblingsLocked(el.ParentID)
	s.setSiblingsLocked(el.ParentID, slices.DeleteFunc(slices.Clone(siblings), func(v string) bool { return v == id }))

	removed := []string{id}
	s.walkLocked(el.Children, func(c *Element) {
		removed = append(removed, c.ID)
	})
	for _, rid := range removed {
		delete(s.elements, rid)
	}
	s.mu.Unlock()

	s.notifier.Emit(notify.TopicElementRemoved, source, removed...)
	return removed, nil
}

// Reparent moves id under parentID at index while keeping its absolute
// position: the stored rect becomes absolute - origin(parentID).
func (s *Scene) Reparent(id, parentID string, index int) error {
	s.mu.Lock()
	el, ok := s.elements[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("reparent %q: %w", id, ErrNotFound)
	}
	if err := s.checkContainerLocked(parentID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("reparent %q: %w", id, err)
	}
	if s.isDescendantLocked(parentID, id) {
		s.mu.Unlock()
		return fmt.Errorf("reparent %q: %w", id, ErrCycle)
	}

	oldOrigin := s.originLocked(el.ParentID)
	abs := el.Rect.Translate(oldOrigin.X, oldOrigin.Y)

	old := s.siblingsLocked(el.ParentID)
	s.setSiblingsLocked(el.ParentID, slices.DeleteFunc(slices.Clone(old), func(v string) bool { return v == id }))

	el.ParentID = parentID
	s.setSiblingsLocked(parentID, insertAt(s.siblingsLocked(parentID), id, index))

	newOrigin := s.originLocked(parentID)
	el.Rect = abs.Translate(-newOrigin.X, -newOrigin.Y)
	s.mu.Unlock()

	s.notifier.Emit(notify.TopicElementUpdated, source, id)
	return nil
}

// isDescendantLocked reports whether candidate is ancestor itself or lies in
// its subtree.
func (s *Scene) isDescendantLocked(candidate, ancestor string) bool {
	for candidate != RootID {
		if candidate == ancestor {
			return true
		}
		el, ok := s.elements[candidate]
		if !ok {
			return false
		}
		candidate = el.ParentID
	}
	return false
}

// MoveToIndex reorders id within its sibling list. Geometry is unchanged.
func (s *Scene) MoveToIndex(id string, index int) error {
	s.mu.Lock()
	el, ok := s.elements[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("move %q: %w", id, ErrNotFound)
	}
	siblings := slices.DeleteFunc(slices.Clone(s.siblingsLocked(el.ParentID)), func(v string) bool { return v == id })
	s.setSiblingsLocked(el.ParentID, insertAt(siblings, id, index))
	s.mu.Unlock()

	s.notifier.Emit(notify.TopicElementUpdated, source, id)
	return nil
}

// SetLocked sets the locked flag.
func (s *Scene) SetLocked(id string, locked bool) error {
	s.mu.Lock()
	el, ok := s.elements[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("lock %q: %w", id, ErrNotFound)
	}
	el.Locked = locked
	s.mu.Unlock()

	s.notifier.Publish(notify.Change{Topic: notify.TopicElementLocked, Source: source, IDs: []string{id}, Detail: locked})
	return nil
}

// SetHidden sets the hidden flag.
func (s *Scene) SetHidden(id string, hidden bool) error {
	s.mu.Lock()
	el, ok := s.elements[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("hide %q: %w", id, ErrNotFound)
	}
	el.Hidden = hidden
	s.mu.Unlock()

	s.notifier.Publish(notify.Change{Topic: notify.TopicElementHidden, Source: source, IDs: []string{id}, Detail: hidden})
	return nil
}

// SetStyle sets a style property. An empty value removes the property.
func (s *Scene) SetStyle(id, property, value string) error {
	s.mu.Lock()
	el, ok := s.elements[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("style %q: %w", id, ErrNotFound)
	}
	if value == "" {
		delete(el.Style, property)
	} else {
		if el.Style == nil {
			el.Style = make(map[string]string)
		}
		el.Style[property] = value
	}
	s.mu.Unlock()

	s.notifier.Emit(notify.TopicElementUpdated, source, id)
	return nil
}

// Selectable reports whether id exists and neither it nor any ancestor is
// locked or hidden.
func (s *Scene) Selectable(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.elements[id]
	if !ok {
		return false
	}
	for {
		if el.Locked || el.Hidden {
			return false
		}
		if el.ParentID == RootID {
			return true
		}
		if el, ok = s.elements[el.ParentID]; !ok {
			return false
		}
	}
}

// insertAt returns ids with id inserted at index; out-of-range appends.
func insertAt(ids []string, id string, index int) []string {
	if index < 0 || index >= len(ids) {
		return append(slices.Clone(ids), id)
	}
	return slices.Insert(slices.Clone(ids), index, id)
}
