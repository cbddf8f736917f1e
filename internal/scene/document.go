package scene

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dshills/pagecraft/internal/geometry"
)

// Document is the nested YAML form of a scene used by the command-line
// harness and test fixtures.
type Document struct {
	Canvas   Size   `yaml:"canvas"`
	Elements []Node `yaml:"elements"`
}

// Size is a canvas size.
type Size struct {
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

// Node is one element of a Document. Rect is relative to the parent node.
type Node struct {
	ID       string            `yaml:"id,omitempty"`
	Kind     Kind              `yaml:"kind,omitempty"`
	Type     string            `yaml:"type,omitempty"`
	Name     string            `yaml:"name,omitempty"`
	Rect     geometry.Rect     `yaml:"rect"`
	Locked   bool              `yaml:"locked,omitempty"`
	Hidden   bool              `yaml:"hidden,omitempty"`
	Style    map[string]string `yaml:"style,omitempty"`
	Children []Node            `yaml:"children,omitempty"`
}

// ReadYAML decodes a Document and builds a Scene from it. Nodes without an
// id get a generated one; nodes with children become groups. A group must
// have at least two children.
func ReadYAML(r io.Reader, opts ...Option) (*Scene, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode scene document: %w", err)
	}
	return FromDocument(doc, opts...)
}

// FromDocument builds a Scene from a Document. A canvas size in the
// document overrides one given in opts.
func FromDocument(doc Document, opts ...Option) (*Scene, error) {
	if doc.Canvas.W > 0 && doc.Canvas.H > 0 {
		opts = append(opts, WithCanvas(doc.Canvas.W, doc.Canvas.H))
	}
	s := New(opts...)
	if err := s.insertNodes(doc.Elements, RootID); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scene) insertNodes(nodes []Node, parentID string) error {
	for _, n := range nodes {
		kind := n.Kind
		if kind == "" {
			kind = KindComponent
			if len(n.Children) > 0 {
				kind = KindGroup
			}
		}
		el := Element{
			ID:     n.ID,
			Kind:   kind,
			Type:   n.Type,
			Name:   n.Name,
			Rect:   n.Rect,
			Locked: n.Locked,
			Hidden: n.Hidden,
			Style:  n.Style,
		}
		if el.ID == RootID {
			el.ID = s.NewID()
		}
		if kind == KindGroup && len(n.Children) < 2 {
			return fmt.Errorf("scene document: group %q has %d children, need at least 2", el.ID, len(n.Children))
		}
		if err := s.Insert(el, parentID, -1); err != nil {
			return fmt.Errorf("scene document: %w", err)
		}
		if err := s.insertNodes(n.Children, el.ID); err != nil {
			return err
		}
	}
	return nil
}

// Document returns the nested form of the scene.
func (s *Scene) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Document{
		Canvas:   Size{W: s.canvas.W, H: s.canvas.H},
		Elements: s.nodesLocked(s.root),
	}
}

func (s *Scene) nodesLocked(ids []string) []Node {
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		el, ok := s.elements[id]
		if !ok {
			continue
		}
		c := el.Clone()
		nodes = append(nodes, Node{
			ID:       c.ID,
			Kind:     c.Kind,
			Type:     c.Type,
			Name:     c.Name,
			Rect:     c.Rect,
			Locked:   c.Locked,
			Hidden:   c.Hidden,
			Style:    c.Style,
			Children: s.nodesLocked(c.Children),
		})
	}
	return nodes
}

// WriteYAML encodes the scene as a Document.
func (s *Scene) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s.Document()); err != nil {
		return fmt.Errorf("encode scene document: %w", err)
	}
	return enc.Close()
}
