package scene

import (
	"errors"

	"github.com/dshills/pagecraft/internal/geometry"
)

// Common errors for scene operations.
var (
	ErrNotFound     = errors.New("element not found")
	ErrDuplicateID  = errors.New("duplicate element id")
	ErrNotContainer = errors.New("parent is not a group")
	ErrCycle        = errors.New("element cannot be moved into its own subtree")
	ErrBadSnapshot  = errors.New("invalid scene snapshot")
)

// Accessor is the view of the scene the editing engine works through.
// Implementations must resolve ids stably for the life of an element.
type Accessor interface {
	// Queries
	Get(id string) (Element, bool)
	Has(id string) bool
	All() []Element
	Children(parentID string) []string
	Parent(id string) (string, bool)
	IndexOf(id string) int
	Canvas() geometry.Rect

	// Geometry
	Rect(id string) (geometry.Rect, bool)
	AbsoluteRect(id string) (geometry.Rect, bool)
	Origin(parentID string) geometry.Point
	SetRect(id string, r geometry.Rect) error

	// Structure
	Insert(el Element, parentID string, index int) error
	Remove(id string) ([]string, error)
	Reparent(id, parentID string, index int) error
	MoveToIndex(id string, index int) error

	// Flags and style
	SetLocked(id string, locked bool) error
	SetHidden(id string, hidden bool) error
	SetStyle(id, property, value string) error
	Selectable(id string) bool

	// NewID returns a fresh unique element id.
	NewID() string
}

// Serializer captures and restores the full scene state. Restore(Serialize())
// must reproduce an identical Serialize() output.
type Serializer interface {
	Serialize() ([]byte, error)
	Restore(snapshot []byte) error
}

// Store is an Accessor that can also be snapshotted.
type Store interface {
	Accessor
	Serializer
}
