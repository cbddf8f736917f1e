package editor

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dshills/pagecraft/internal/config"
	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/history"
	"github.com/dshills/pagecraft/internal/notify"
	"github.com/dshills/pagecraft/internal/scene"
)

type stepScheduler struct {
	mu      sync.Mutex
	pending []*stepTimer
}

type stepTimer struct {
	f       func()
	stopped bool
}

func (t *stepTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *stepScheduler) AfterFunc(_ time.Duration, f func()) history.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &stepTimer{f: f}
	s.pending = append(s.pending, t)
	return t
}

func (s *stepScheduler) Fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, t := range pending {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

func pt(x, y float64) geometry.Point {
	return geometry.Point{X: x, Y: y}
}

// newSession builds:
//
//	a (100,100 50x50)  b (300,100 50x50)  c (500,400 50x50)
//	g group (600,600 100x100)
//	  x (10,10 20x20)
func newSession(t *testing.T, mutate func(*config.Config)) (*Session, *stepScheduler) {
	t.Helper()
	sc := scene.New(scene.WithCanvas(1000, 800))
	insert := func(el scene.Element, parent string) {
		if err := sc.Insert(el, parent, -1); err != nil {
			t.Fatalf("insert %s: %v", el.ID, err)
		}
	}
	insert(scene.Element{ID: "a", Rect: geometry.R(100, 100, 50, 50)}, scene.RootID)
	insert(scene.Element{ID: "b", Rect: geometry.R(300, 100, 50, 50)}, scene.RootID)
	insert(scene.Element{ID: "c", Rect: geometry.R(500, 400, 50, 50)}, scene.RootID)
	insert(scene.Element{ID: "g", Kind: scene.KindGroup, Rect: geometry.R(600, 600, 100, 100)}, scene.RootID)
	insert(scene.Element{ID: "x", Rect: geometry.R(10, 10, 20, 20)}, "g")

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	sched := &stepScheduler{}
	s := New(sc, cfg, WithScheduler(sched))
	t.Cleanup(s.Close)
	return s, sched
}

func noSnap(c *config.Config) { c.Snap.Enabled = false }

func click(s *Session, p geometry.Point, mods Modifiers) {
	s.PointerDown(p, mods)
	s.PointerUp(p)
}

func rectOf(t *testing.T, s *Session, id string) geometry.Rect {
	t.Helper()
	r, ok := s.Scene.AbsoluteRect(id)
	if !ok {
		t.Fatalf("missing %s", id)
	}
	return r
}

func wantIDs(t *testing.T, s *Session, want ...string) {
	t.Helper()
	if got := s.Selection.IDs(); !slices.Equal(got, want) {
		t.Errorf("selection = %v, want %v", got, want)
	}
}

func wantRect(t *testing.T, s *Session, id string, want geometry.Rect) {
	t.Helper()
	if got := rectOf(t, s, id); got != want {
		t.Errorf("%s = %v, want %v", id, got, want)
	}
}

func wantHistory(t *testing.T, s *Session, n int) {
	t.Helper()
	if got := s.History.Len(); got != n {
		t.Errorf("history Len = %d, want %d", got, n)
	}
}

func TestNewRecordsInitialEntry(t *testing.T) {
	s, _ := newSession(t, nil)
	wantHistory(t, s, 1)
	if s.History.Cursor() != 0 || s.History.CanUndo() {
		t.Errorf("cursor=%d canUndo=%v", s.History.Cursor(), s.History.CanUndo())
	}
}

func TestClickSelects(t *testing.T) {
	s, _ := newSession(t, nil)
	click(s, pt(120, 120), Modifiers{})
	wantIDs(t, s, "a")
	if s.State() != StateIdle {
		t.Errorf("state = %v", s.State())
	}
	wantHistory(t, s, 1)

	// A plain click replaces the selection.
	click(s, pt(320, 120), Modifiers{})
	wantIDs(t, s, "b")
}

func TestMetaToggles(t *testing.T) {
	s, _ := newSession(t, nil)
	click(s, pt(120, 120), Modifiers{})
	click(s, pt(320, 120), Modifiers{Meta: true})
	wantIDs(t, s, "a", "b")
	click(s, pt(120, 120), Modifiers{Meta: true})
	wantIDs(t, s, "b")
}

func TestShiftSelectsRange(t *testing.T) {
	s, _ := newSession(t, nil)
	click(s, pt(120, 120), Modifiers{})
	click(s, pt(520, 420), Modifiers{Shift: true})
	got := slices.Sorted(slices.Values(s.Selection.IDs()))
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("selection = %v, want a, b, c", got)
	}
}

func TestClickEmptyCanvasClears(t *testing.T) {
	s, _ := newSession(t, nil)
	click(s, pt(120, 120), Modifiers{})
	click(s, pt(900, 50), Modifiers{})
	wantIDs(t, s)
	if s.State() != StateIdle {
		t.Errorf("state = %v", s.State())
	}
}

func TestHitTestReturnsOutermostGroup(t *testing.T) {
	s, _ := newSession(t, nil)
	if id, ok := s.HitTest(pt(615, 615)); !ok || id != "g" {
		t.Errorf("HitTest = %q, %v; want g", id, ok)
	}

	if err := s.Scene.Insert(scene.Element{ID: "h", Kind: scene.KindGroup, Rect: geometry.R(50, 50, 40, 40)}, "g", -1); err != nil {
		t.Fatal(err)
	}
	if err := s.Scene.Insert(scene.Element{ID: "y", Rect: geometry.R(5, 5, 10, 10)}, "h", -1); err != nil {
		t.Fatal(err)
	}
	if id, ok := s.HitTest(pt(660, 660)); !ok || id != "g" {
		t.Errorf("nested HitTest = %q, %v; want g", id, ok)
	}

	if _, ok := s.HitTest(pt(5, 5)); ok {
		t.Error("empty canvas hit something")
	}
}

func TestHitTestSkipsLocked(t *testing.T) {
	s, _ := newSession(t, nil)
	if err := s.Scene.SetLocked("a", true); err != nil {
		t.Fatal(err)
	}
	if id, ok := s.HitTest(pt(120, 120)); ok {
		t.Errorf("HitTest = %q, want no hit", id)
	}
}

func TestDragMovesAndRecordsOneEntry(t *testing.T) {
	s, sched := newSession(t, noSnap)

	s.PointerDown(pt(120, 120), Modifiers{})
	s.PointerMove(pt(140, 125))
	s.PointerMove(pt(170, 140))
	if s.State() != StateDragging {
		t.Errorf("state = %v, want dragging", s.State())
	}
	wantRect(t, s, "a", geometry.R(150, 120, 50, 50))

	s.PointerUp(pt(170, 140))
	if s.State() != StateIdle || !s.History.HasPending() {
		t.Errorf("state=%v pending=%v", s.State(), s.History.HasPending())
	}
	wantHistory(t, s, 1)

	sched.Fire()
	if s.History.Len() != 2 {
		t.Fatalf("history Len = %d, want 2", s.History.Len())
	}
	if typ := s.History.Entries()[1].Meta.Type; typ != "move" {
		t.Errorf("entry type = %q, want move", typ)
	}

	if err := s.Undo(); err != nil {
		t.Fatal(err)
	}
	wantRect(t, s, "a", geometry.R(100, 100, 50, 50))
}

func TestDragMovesWholeSelection(t *testing.T) {
	s, _ := newSession(t, noSnap)
	s.Selection.Set([]string{"a", "b"})

	s.PointerDown(pt(120, 120), Modifiers{})
	s.PointerMove(pt(130, 130))
	s.PointerUp(pt(130, 130))

	wantRect(t, s, "a", geometry.R(110, 110, 50, 50))
	wantRect(t, s, "b", geometry.R(310, 110, 50, 50))
	wantIDs(t, s, "a", "b")
}

func TestDragGroupMovesChildren(t *testing.T) {
	s, _ := newSession(t, noSnap)
	s.PointerDown(pt(615, 615), Modifiers{})
	s.PointerMove(pt(595, 605))
	s.PointerUp(pt(595, 605))

	wantRect(t, s, "g", geometry.R(580, 590, 100, 100))
	wantRect(t, s, "x", geometry.R(590, 600, 20, 20))
	if r, _ := s.Scene.Rect("x"); r != geometry.R(10, 10, 20, 20) {
		t.Errorf("child relative rect = %v, want unchanged", r)
	}
}

func TestEscapeCancelsDrag(t *testing.T) {
	s, _ := newSession(t, nil)
	s.PointerDown(pt(120, 120), Modifiers{})
	s.PointerMove(pt(200, 300))
	if rectOf(t, s, "a") == geometry.R(100, 100, 50, 50) {
		t.Fatal("drag did not move a")
	}

	s.Escape()
	wantRect(t, s, "a", geometry.R(100, 100, 50, 50))
	if s.State() != StateIdle {
		t.Errorf("state = %v", s.State())
	}
	if len(s.Guides.Current()) != 0 || s.History.HasPending() {
		t.Error("escape left guides or a pending save")
	}
	wantHistory(t, s, 1)
	// Cancelling a drag keeps the selection.
	wantIDs(t, s, "a")
}

func TestReleaseWithoutMoveRecordsNothing(t *testing.T) {
	s, _ := newSession(t, nil)
	s.PointerDown(pt(120, 120), Modifiers{})
	s.PointerUp(pt(120, 120))
	if s.History.HasPending() {
		t.Error("pending save after click")
	}
	wantHistory(t, s, 1)
}

func TestDragSnapsToSibling(t *testing.T) {
	s, _ := newSession(t, nil)

	s.PointerDown(pt(120, 120), Modifiers{})
	s.PointerMove(pt(317, 123))
	wantRect(t, s, "a", geometry.R(300, 100, 50, 50))
	if len(s.Guides.Current()) == 0 {
		t.Error("no guides while snapped")
	}

	s.PointerUp(pt(317, 123))
	if len(s.Guides.Current()) != 0 {
		t.Error("guides should clear at drag end")
	}
	wantRect(t, s, "a", geometry.R(300, 100, 50, 50))
}

func TestMarqueeSelects(t *testing.T) {
	s, _ := newSession(t, nil)
	s.PointerDown(pt(90, 90), Modifiers{})
	if s.State() != StateMarquee {
		t.Errorf("state = %v, want marquee", s.State())
	}
	s.PointerMove(pt(360, 160))
	s.PointerUp(pt(360, 160))

	wantIDs(t, s, "a", "b")
	wantHistory(t, s, 1)
	if s.Selection.InMarquee() {
		t.Error("marquee still active")
	}
}

func TestMarqueeAdditive(t *testing.T) {
	s, _ := newSession(t, nil)
	click(s, pt(520, 420), Modifiers{})

	s.PointerDown(pt(90, 90), Modifiers{Shift: true})
	s.PointerMove(pt(160, 160))
	s.PointerUp(pt(160, 160))
	wantIDs(t, s, "c", "a")
}

func TestMarqueeEscapeRestoresSelection(t *testing.T) {
	s, _ := newSession(t, nil)
	click(s, pt(520, 420), Modifiers{})

	s.PointerDown(pt(90, 90), Modifiers{})
	wantIDs(t, s)
	s.PointerMove(pt(160, 160))
	s.Escape()

	wantIDs(t, s, "c")
	if s.State() != StateIdle {
		t.Errorf("state = %v", s.State())
	}
}

func TestEscapeWhenIdleClearsSelection(t *testing.T) {
	s, _ := newSession(t, nil)
	click(s, pt(120, 120), Modifiers{})
	s.Escape()
	wantIDs(t, s)
}

func TestDragFlushesPendingNudge(t *testing.T) {
	s, _ := newSession(t, noSnap)
	click(s, pt(120, 120), Modifiers{})
	if !s.Ops.Nudge(1, 0).Applied || !s.History.HasPending() {
		t.Fatal("nudge should leave a pending save")
	}

	s.PointerDown(pt(125, 120), Modifiers{})
	if s.History.HasPending() {
		t.Error("pointer down should flush the nudge")
	}
	wantHistory(t, s, 2)
	s.Escape()
}

func TestTransactionUndoesAsOneStep(t *testing.T) {
	s, _ := newSession(t, noSnap)
	s.Selection.Set([]string{"a", "b", "c"})

	err := s.Transaction("Tidy row", func() error {
		s.Ops.Align(geometry.AlignTop)
		s.Ops.Distribute(geometry.Horizontal)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	wantHistory(t, s, 2)
	if e := s.History.Entries()[1]; e.Meta.Type != "transaction" || e.Meta.Description != "Tidy row" {
		t.Errorf("entry meta = %+v", e.Meta)
	}

	if err := s.Undo(); err != nil {
		t.Fatal(err)
	}
	wantRect(t, s, "c", geometry.R(500, 400, 50, 50))

	boom := errors.New("boom")
	err = s.Transaction("Broken", func() error {
		s.Ops.MoveSelected(10, 10)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	wantRect(t, s, "a", geometry.R(100, 100, 50, 50))
}

func TestCloseStopsNotifications(t *testing.T) {
	s, _ := newSession(t, nil)
	var changes int
	s.Selection.Notifier().Subscribe(func(notify.Change) { changes++ })
	s.History.Notifier().Subscribe(func(notify.Change) { changes++ })

	s.Close()
	s.Selection.SelectSingle("a")
	s.History.SaveState(history.Meta{Type: "late"})

	if changes != 0 {
		t.Errorf("changes after Close = %d, want 0", changes)
	}
	if s.Selection.Notifier().Len() != 0 {
		t.Error("subscriptions survived Close")
	}
	if _, ok := s.Scene.AbsoluteRect("a"); !ok {
		t.Error("scene should stay usable after Close")
	}
}

func TestApplyConfig(t *testing.T) {
	s, _ := newSession(t, nil)
	cfg := config.Default()
	cfg.Snap.Enabled = false
	cfg.Snap.Threshold = 9
	cfg.History.MaxSize = 3
	cfg.History.DebounceMS = 50
	cfg.Group.Padding = 4

	s.ApplyConfig(cfg)
	if s.SnapEnabled() {
		t.Error("snap still enabled")
	}
	if s.Guides.Threshold() != 9 {
		t.Errorf("threshold = %v", s.Guides.Threshold())
	}
	if s.History.MaxHistorySize() != 3 {
		t.Errorf("max history = %d", s.History.MaxHistorySize())
	}
	if s.History.Debounce() != 50*time.Millisecond {
		t.Errorf("debounce = %v", s.History.Debounce())
	}
	if s.Groups.Padding() != 4 {
		t.Errorf("padding = %v", s.Groups.Padding())
	}
}
