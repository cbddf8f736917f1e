package scene

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/notify"
)

// newTestScene builds a scene with sequential ids:
//
//	a (0,0 10x10)
//	g group (100,100 50x50)
//	  c (10,10 5x5)
//	  d (20,20 5x5)
//	b (30,30 10x10)
func newTestScene(t *testing.T) *Scene {
	t.Helper()
	n := 0
	s := New(WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen%d", n)
	}))
	mustInsert(t, s, Element{ID: "a", Rect: geometry.R(0, 0, 10, 10)}, RootID)
	mustInsert(t, s, Element{ID: "g", Kind: KindGroup, Rect: geometry.R(100, 100, 50, 50)}, RootID)
	mustInsert(t, s, Element{ID: "c", Rect: geometry.R(10, 10, 5, 5)}, "g")
	mustInsert(t, s, Element{ID: "d", Rect: geometry.R(20, 20, 5, 5)}, "g")
	mustInsert(t, s, Element{ID: "b", Rect: geometry.R(30, 30, 10, 10)}, RootID)
	return s
}

func mustInsert(t *testing.T, s *Scene, el Element, parent string) {
	t.Helper()
	if err := s.Insert(el, parent, -1); err != nil {
		t.Fatalf("Insert(%s): %v", el.ID, err)
	}
}

func ids(els []Element) string {
	out := make([]string, len(els))
	for i, el := range els {
		out[i] = el.ID
	}
	return strings.Join(out, ",")
}

func TestScene_AllPreOrder(t *testing.T) {
	s := newTestScene(t)
	if got := ids(s.All()); got != "a,g,c,d,b" {
		t.Errorf("All() = %s", got)
	}
	if got := strings.Join(s.Children("g"), ","); got != "c,d" {
		t.Errorf("Children(g) = %s", got)
	}
}

func TestScene_AbsoluteRect(t *testing.T) {
	s := newTestScene(t)
	r, ok := s.AbsoluteRect("c")
	if !ok {
		t.Fatal("c not found")
	}
	if r != geometry.R(110, 110, 5, 5) {
		t.Errorf("AbsoluteRect(c) = %v", r)
	}
	if o := s.Origin("g"); o != (geometry.Point{X: 100, Y: 100}) {
		t.Errorf("Origin(g) = %v", o)
	}
}

func TestScene_ReparentKeepsAbsolutePosition(t *testing.T) {
	s := newTestScene(t)
	if err := s.Reparent("c", RootID, -1); err != nil {
		t.Fatalf("Reparent: %v", err)
	}
	r, _ := s.Rect("c")
	if r != geometry.R(110, 110, 5, 5) {
		t.Errorf("rect after reparent = %v", r)
	}
	if p, _ := s.Parent("c"); p != RootID {
		t.Errorf("parent = %q", p)
	}
	if got := strings.Join(s.Children("g"), ","); got != "d" {
		t.Errorf("Children(g) = %s", got)
	}

	if err := s.Reparent("a", "g", 0); err != nil {
		t.Fatalf("Reparent into group: %v", err)
	}
	r, _ = s.Rect("a")
	if r != geometry.R(-100, -100, 10, 10) {
		t.Errorf("group-relative rect = %v", r)
	}
}

func TestScene_ReparentErrors(t *testing.T) {
	s := newTestScene(t)
	if err := s.Reparent("g", "g", -1); !errors.Is(err, ErrCycle) {
		t.Errorf("self reparent err = %v", err)
	}
	if err := s.Reparent("a", "b", -1); !errors.Is(err, ErrNotContainer) {
		t.Errorf("component parent err = %v", err)
	}
	if err := s.Reparent("zzz", RootID, -1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestScene_RemoveSubtree(t *testing.T) {
	s := newTestScene(t)

	var removed []string
	s.Notifier().SubscribeTopic(notify.TopicElementRemoved, func(c notify.Change) {
		removed = append(removed, c.IDs...)
	})

	got, err := s.Remove("g")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if strings.Join(got, ",") != "g,c,d" {
		t.Errorf("removed = %v", got)
	}
	if strings.Join(removed, ",") != "g,c,d" {
		t.Errorf("notified = %v", removed)
	}
	if s.Has("c") || s.Len() != 2 {
		t.Error("subtree still present")
	}
}

func TestScene_MoveToIndex(t *testing.T) {
	s := newTestScene(t)
	if err := s.MoveToIndex("b", 0); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(s.Children(RootID), ","); got != "b,a,g" {
		t.Errorf("root = %s", got)
	}
	if err := s.MoveToIndex("b", -1); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(s.Children(RootID), ","); got != "a,g,b" {
		t.Errorf("root = %s", got)
	}
}

func TestScene_Selectable(t *testing.T) {
	s := newTestScene(t)
	if !s.Selectable("c") {
		t.Error("c should be selectable")
	}
	_ = s.SetLocked("g", true)
	if s.Selectable("c") {
		t.Error("child of locked group should not be selectable")
	}
	_ = s.SetLocked("g", false)
	_ = s.SetHidden("d", true)
	if s.Selectable("d") {
		t.Error("hidden element should not be selectable")
	}
	if s.Selectable("missing") {
		t.Error("missing element should not be selectable")
	}
}

func TestScene_SetStyle(t *testing.T) {
	s := newTestScene(t)
	_ = s.SetStyle("a", "color", "red")
	el, _ := s.Get("a")
	if el.Style["color"] != "red" {
		t.Errorf("style = %v", el.Style)
	}
	_ = s.SetStyle("a", "color", "")
	el, _ = s.Get("a")
	if _, ok := el.Style["color"]; ok {
		t.Error("empty value should remove the property")
	}
}

func TestScene_GetReturnsCopy(t *testing.T) {
	s := newTestScene(t)
	g, _ := s.Get("g")
	g.Children[0] = "mutated"
	if got := s.Children("g"); got[0] != "c" {
		t.Error("Get leaked internal slice")
	}
}

func TestScene_InsertErrors(t *testing.T) {
	s := newTestScene(t)
	if err := s.Insert(Element{ID: "a"}, RootID, -1); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate err = %v", err)
	}
	if err := s.Insert(Element{ID: "x"}, "a", -1); !errors.Is(err, ErrNotContainer) {
		t.Errorf("container err = %v", err)
	}
	if err := s.Insert(Element{}, RootID, 0); err != nil {
		t.Fatalf("generated id insert: %v", err)
	}
	if !s.Has("gen1") {
		t.Error("generated id not used")
	}
}

func TestScene_SnapshotRoundTrip(t *testing.T) {
	s := newTestScene(t)
	_ = s.SetStyle("c", "color", "blue")
	_ = s.SetLocked("b", true)

	first, err := s.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	other := New()
	if err := other.Restore(first); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	second, err := other.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("round trip differs:\n%s\n%s", first, second)
	}
	if got := ids(other.All()); got != "a,g,c,d,b" {
		t.Errorf("restored order = %s", got)
	}
}

func TestScene_RestoreRejectsCorruptSnapshot(t *testing.T) {
	s := newTestScene(t)
	before, _ := s.Serialize()

	bad := [][]byte{
		nil,
		[]byte("{not json"),
		[]byte(`{"version":99,"elements":[]}`),
		[]byte(`{"version":1,"elements":[{"id":"x","kind":"component","rect":{"x":0,"y":0,"w":1,"h":1},"parent":"nope"}]}`),
	}
	for i, data := range bad {
		if err := s.Restore(data); !errors.Is(err, ErrBadSnapshot) {
			t.Errorf("case %d: err = %v, want ErrBadSnapshot", i, err)
		}
	}

	after, _ := s.Serialize()
	if !bytes.Equal(before, after) {
		t.Error("failed restore modified the scene")
	}
}

func TestScene_RestoreRejectsCycles(t *testing.T) {
	s := newTestScene(t)
	before, _ := s.Serialize()

	bad := map[string]string{
		"cycle": `{"version":1,"elements":[
			{"id":"a","kind":"group","rect":{"x":0,"y":0,"w":1,"h":1},"parent":"b","children":["b"]},
			{"id":"b","kind":"group","rect":{"x":0,"y":0,"w":1,"h":1},"parent":"a","children":["a"]}]}`,
		"orphan cycle beside root": `{"version":1,"elements":[
			{"id":"r","kind":"component","rect":{"x":0,"y":0,"w":1,"h":1}},
			{"id":"a","kind":"group","rect":{"x":0,"y":0,"w":1,"h":1},"parent":"a","children":["a"]}]}`,
		"child listed twice": `{"version":1,"elements":[
			{"id":"g","kind":"group","rect":{"x":0,"y":0,"w":9,"h":9},"children":["x","x"]},
			{"id":"x","kind":"component","rect":{"x":0,"y":0,"w":1,"h":1},"parent":"g"}]}`,
	}
	for name, data := range bad {
		if err := s.Restore([]byte(data)); !errors.Is(err, ErrBadSnapshot) {
			t.Errorf("%s: err = %v, want ErrBadSnapshot", name, err)
		}
	}

	after, _ := s.Serialize()
	if !bytes.Equal(before, after) {
		t.Error("failed restore modified the scene")
	}
	if !s.Selectable("a") {
		t.Error("a should stay selectable")
	}
}

func TestScene_NewIDUsesUUID(t *testing.T) {
	s := New()
	a, b := s.NewID(), s.NewID()
	if a == b || len(a) != 36 {
		t.Errorf("ids %q %q", a, b)
	}
}
