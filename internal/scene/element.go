// Package scene provides the scene accessor consumed by the editing engine
// and an in-memory implementation of it.
//
// Element geometry is stored in the parent's frame: canvas-local for root
// elements and group-relative for children of a group. Every editing
// computation works in canvas-local ("absolute") coordinates, obtained with
// AbsoluteRect; Reparent converts back so an element keeps its absolute
// position when it moves between frames.
package scene

import (
	"maps"
	"slices"

	"github.com/dshills/pagecraft/internal/geometry"
)

// Kind distinguishes plain components from groups.
type Kind string

const (
	// KindComponent is a leaf element produced by the component factory.
	KindComponent Kind = "component"
	// KindGroup is a synthetic container created by the group manager.
	KindGroup Kind = "group"
)

// RootID is the parent id of elements placed directly on the canvas.
const RootID = ""

// Element is a node in the scene.
type Element struct {
	ID       string            `json:"id" yaml:"id"`
	Kind     Kind              `json:"kind" yaml:"kind"`
	Type     string            `json:"type,omitempty" yaml:"type,omitempty"`
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Rect     geometry.Rect     `json:"rect" yaml:"rect"`
	ParentID string            `json:"parent,omitempty" yaml:"parent,omitempty"`
	Locked   bool              `json:"locked,omitempty" yaml:"locked,omitempty"`
	Hidden   bool              `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Style    map[string]string `json:"style,omitempty" yaml:"style,omitempty"`

	// Children are ordered back to front. Only groups have children.
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsGroup reports whether the element is a group.
func (e Element) IsGroup() bool {
	return e.Kind == KindGroup
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	c := e
	if e.Style != nil {
		c.Style = maps.Clone(e.Style)
	}
	if e.Children != nil {
		c.Children = slices.Clone(e.Children)
	}
	return c
}
