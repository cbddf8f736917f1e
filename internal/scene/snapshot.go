package scene

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/notify"
)

// snapshotVersion is bumped when the snapshot layout changes.
const snapshotVersion = 1

// snapshot is the serialized form of a Scene. Elements are listed in
// depth-first pre-order and carry their child order, so the root order is
// the order of elements with an empty parent.
type snapshot struct {
	Version  int           `json:"version"`
	Canvas   geometry.Rect `json:"canvas"`
	Elements []Element     `json:"elements"`
}

// Serialize captures the complete scene state.
func (s *Scene) Serialize() ([]byte, error) {
	s.mu.RLock()
	snap := snapshot{
		Version:  snapshotVersion,
		Canvas:   s.canvas,
		Elements: make([]Element, 0, len(s.elements)),
	}
	s.walkLocked(s.root, func(el *Element) {
		snap.Elements = append(snap.Elements, el.Clone())
	})
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("serialize scene: %w", err)
	}
	return data, nil
}

// Restore replaces the scene state with a snapshot produced by Serialize.
// The scene is left untouched when the snapshot is invalid.
func (s *Scene) Restore(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrBadSnapshot)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, snap.Version)
	}

	elements := make(map[string]*Element, len(snap.Elements))
	var root []string
	for i := range snap.Elements {
		el := snap.Elements[i].Clone()
		if el.ID == RootID {
			return fmt.Errorf("%w: element %d has no id", ErrBadSnapshot, i)
		}
		if _, dup := elements[el.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrBadSnapshot, el.ID)
		}
		elements[el.ID] = &el
		if el.ParentID == RootID {
			root = append(root, el.ID)
		}
	}
	if err := validateLinks(elements, root); err != nil {
		return err
	}

	s.mu.Lock()
	s.elements = elements
	s.root = root
	s.canvas = snap.Canvas
	s.mu.Unlock()

	s.notifier.Emit(notify.TopicSceneRestored, source)
	return nil
}

// validateLinks checks that parent and child references agree and that
// every element is reached exactly once walking down from root.
func validateLinks(elements map[string]*Element, root []string) error {
	for id, el := range elements {
		if el.ParentID != RootID {
			p, ok := elements[el.ParentID]
			if !ok {
				return fmt.Errorf("%w: %q has missing parent %q", ErrBadSnapshot, id, el.ParentID)
			}
			found := false
			for _, c := range p.Children {
				if c == id {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: %q not listed by parent %q", ErrBadSnapshot, id, el.ParentID)
			}
		}
		for _, c := range el.Children {
			child, ok := elements[c]
			if !ok || child.ParentID != id {
				return fmt.Errorf("%w: %q lists foreign child %q", ErrBadSnapshot, id, c)
			}
		}
	}

	seen := make(map[string]bool, len(elements))
	var walk func(ids []string) error
	walk = func(ids []string) error {
		for _, id := range ids {
			if seen[id] {
				return fmt.Errorf("%w: %q reached twice", ErrBadSnapshot, id)
			}
			seen[id] = true
			if err := walk(elements[id].Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return err
	}
	if len(seen) != len(elements) {
		return fmt.Errorf("%w: %d elements unreachable from root", ErrBadSnapshot, len(elements)-len(seen))
	}
	return nil
}
