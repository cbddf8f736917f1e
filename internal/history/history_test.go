package history

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/notify"
	"github.com/dshills/pagecraft/internal/scene"
)

// fakeScheduler runs callbacks only when Fire is called.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

// Fire runs every timer that has not been stopped.
func (s *fakeScheduler) Fire() int {
	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()

	n := 0
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
			n++
		}
	}
	return n
}

func newScene(t *testing.T) *scene.Scene {
	t.Helper()
	s := scene.New()
	if err := s.Insert(scene.Element{ID: "a", Rect: geometry.R(0, 0, 10, 10)}, scene.RootID, -1); err != nil {
		t.Fatal(err)
	}
	return s
}

func setX(t *testing.T, s *scene.Scene, x float64) {
	t.Helper()
	r, _ := s.Rect("a")
	r.X = x
	if err := s.SetRect("a", r); err != nil {
		t.Fatal(err)
	}
}

func xOf(s *scene.Scene) float64 {
	r, _ := s.Rect("a")
	return r.X
}

func meta(typ string) Meta {
	return Meta{Type: typ, Description: typ}
}

func TestManager_Empty(t *testing.T) {
	h := New(newScene(t))
	if h.Cursor() != -1 || h.Len() != 0 {
		t.Errorf("cursor=%d len=%d", h.Cursor(), h.Len())
	}
	if h.CanUndo() || h.CanRedo() {
		t.Error("empty history should not undo or redo")
	}
	if err := h.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("Undo() = %v", err)
	}
	if err := h.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("Redo() = %v", err)
	}
}

func TestManager_UndoRedo(t *testing.T) {
	s := newScene(t)
	h := New(s)

	h.SaveState(meta("initial"))
	if h.CanUndo() {
		t.Error("single entry should not be undoable")
	}

	setX(t, s, 50)
	h.SaveState(meta("move"))
	if !h.CanUndo() || h.CanRedo() {
		t.Errorf("CanUndo=%v CanRedo=%v", h.CanUndo(), h.CanRedo())
	}

	if err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if xOf(s) != 0 {
		t.Errorf("after undo x = %v", xOf(s))
	}
	if !h.CanRedo() {
		t.Error("CanRedo should be true after undo")
	}

	if err := h.Redo(); err != nil {
		t.Fatal(err)
	}
	if xOf(s) != 50 {
		t.Errorf("after redo x = %v", xOf(s))
	}
}

func TestManager_SaveDiscardsRedoBranch(t *testing.T) {
	s := newScene(t)
	h := New(s)
	for i := 0; i < 4; i++ {
		setX(t, s, float64(i*10))
		h.SaveState(meta(fmt.Sprintf("s%d", i)))
	}
	_ = h.Undo()
	_ = h.Undo()
	if h.Cursor() != 1 {
		t.Fatalf("cursor = %d", h.Cursor())
	}

	setX(t, s, 99)
	h.SaveState(meta("branch"))
	if h.Len() != 3 || h.Cursor() != 2 {
		t.Errorf("len=%d cursor=%d", h.Len(), h.Cursor())
	}
	if h.CanRedo() {
		t.Error("redo branch should be gone")
	}
	entries := h.Entries()
	if entries[2].Meta.Type != "branch" || !entries[2].Current {
		t.Errorf("tail = %+v", entries[2])
	}
}

func TestManager_Eviction(t *testing.T) {
	s := newScene(t)
	h := New(s, WithMaxHistorySize(3))
	for i := 0; i < 5; i++ {
		setX(t, s, float64(i))
		h.SaveState(meta(fmt.Sprintf("s%d", i)))
	}
	if h.Len() != 3 || h.Cursor() != 2 {
		t.Fatalf("len=%d cursor=%d", h.Len(), h.Cursor())
	}
	if got := h.Entries()[0].Meta.Type; got != "s2" {
		t.Errorf("oldest = %s, want s2", got)
	}

	_ = h.Undo()
	_ = h.Undo()
	if xOf(s) != 2 {
		t.Errorf("x = %v, want 2", xOf(s))
	}
	if h.CanUndo() {
		t.Error("evicted entries should not be reachable")
	}
}

func TestManager_SetMaxHistorySizeKeepsCursorEntry(t *testing.T) {
	s := newScene(t)
	h := New(s)
	for i := 0; i < 5; i++ {
		setX(t, s, float64(i))
		h.SaveState(meta(fmt.Sprintf("s%d", i)))
	}
	h.JumpToState(1)

	h.SetMaxHistorySize(2)
	cur, ok := h.Current()
	if !ok || cur.Meta.Type != "s1" {
		t.Errorf("current = %+v, %v", cur, ok)
	}
	if h.Len() != 2 {
		t.Errorf("len = %d", h.Len())
	}
}

// For N saves followed by M <= N-1 undos the cursor is N-1-M and the scene
// matches the (N-M)th saved state.
func TestManager_SavesThenUndosProperty(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for m := 0; m < n; m++ {
			s := newScene(t)
			h := New(s)
			for i := 0; i < n; i++ {
				setX(t, s, float64(i))
				h.SaveState(meta("s"))
			}
			for i := 0; i < m; i++ {
				if err := h.Undo(); err != nil {
					t.Fatalf("n=%d m=%d undo %d: %v", n, m, i, err)
				}
			}
			if h.Cursor() != n-1-m {
				t.Errorf("n=%d m=%d cursor = %d", n, m, h.Cursor())
			}
			if xOf(s) != float64(n-1-m) {
				t.Errorf("n=%d m=%d x = %v", n, m, xOf(s))
			}
		}
	}
}

func TestManager_JumpToState(t *testing.T) {
	s := newScene(t)
	h := New(s)
	for i := 0; i < 3; i++ {
		setX(t, s, float64(i*10))
		h.SaveState(meta("s"))
	}

	if !h.JumpToState(0) || xOf(s) != 0 || h.Cursor() != 0 {
		t.Errorf("jump 0: x=%v cursor=%d", xOf(s), h.Cursor())
	}

	var rejected int
	h.Notifier().SubscribeTopic(notify.TopicHistoryRejected, func(notify.Change) { rejected++ })
	if h.JumpToState(3) || h.JumpToState(-1) {
		t.Error("out of range jumps should be rejected")
	}
	if h.Cursor() != 0 {
		t.Errorf("cursor moved to %d", h.Cursor())
	}
	if rejected != 2 {
		t.Errorf("rejected notifications = %d", rejected)
	}
}

// Saves triggered by observers of a restore must be ignored.
func TestManager_ReentrantSaveIgnored(t *testing.T) {
	s := newScene(t)
	h := New(s)
	h.SaveState(meta("a"))
	setX(t, s, 5)
	h.SaveState(meta("b"))

	var saved bool
	s.Notifier().SubscribeTopic(notify.TopicSceneRestored, func(notify.Change) {
		if !h.IsRestoring() {
			t.Error("IsRestoring should be true inside restore")
		}
		saved = h.SaveState(meta("echo"))
	})

	if err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if saved {
		t.Error("save during restore should be ignored")
	}
	if h.Len() != 2 || h.Cursor() != 0 {
		t.Errorf("len=%d cursor=%d", h.Len(), h.Cursor())
	}
}

type failingStore struct {
	*scene.Scene
	fail bool
}

func (f *failingStore) Restore(data []byte) error {
	if f.fail {
		return errors.New("boom")
	}
	return f.Scene.Restore(data)
}

func TestManager_RestoreFailureKeepsCursor(t *testing.T) {
	s := newScene(t)
	store := &failingStore{Scene: s}
	h := New(store)
	h.SaveState(meta("a"))
	setX(t, s, 5)
	h.SaveState(meta("b"))

	store.fail = true
	err := h.Undo()
	var rerr *RestoreError
	if !errors.As(err, &rerr) || rerr.Index != 0 {
		t.Fatalf("Undo() = %v", err)
	}
	if h.Cursor() != 1 || h.Len() != 2 {
		t.Errorf("cursor=%d len=%d", h.Cursor(), h.Len())
	}
	if h.IsRestoring() {
		t.Error("restoring flag left set")
	}
}

func TestManager_SaveDebounced(t *testing.T) {
	s := newScene(t)
	sched := &fakeScheduler{}
	h := New(s, WithScheduler(sched))
	h.SaveState(meta("initial"))

	for i := 1; i <= 5; i++ {
		setX(t, s, float64(i))
		h.SaveDebounced(meta("nudge"))
	}
	if h.Len() != 1 || !h.HasPending() {
		t.Fatalf("len=%d pending=%v", h.Len(), h.HasPending())
	}

	if n := sched.Fire(); n != 1 {
		t.Errorf("fired %d timers, want 1", n)
	}
	if h.Len() != 2 || h.HasPending() {
		t.Errorf("len=%d pending=%v", h.Len(), h.HasPending())
	}

	_ = h.Undo()
	if xOf(s) != 0 {
		t.Errorf("x = %v, want 0", xOf(s))
	}
}

func TestManager_FlushAndCancel(t *testing.T) {
	s := newScene(t)
	sched := &fakeScheduler{}
	h := New(s, WithScheduler(sched))
	h.SaveState(meta("initial"))

	setX(t, s, 7)
	h.SaveDebounced(meta("drag"))
	if !h.Flush() {
		t.Error("Flush should report a pending save")
	}
	if h.Len() != 2 {
		t.Errorf("len = %d", h.Len())
	}
	if sched.Fire() != 0 {
		t.Error("flushed timer should be stopped")
	}

	setX(t, s, 8)
	h.SaveDebounced(meta("drag"))
	if !h.CancelPending() {
		t.Error("CancelPending should report a pending save")
	}
	sched.Fire()
	if h.Len() != 2 {
		t.Errorf("len = %d after cancel", h.Len())
	}
}

func TestManager_UndoFlushesPending(t *testing.T) {
	s := newScene(t)
	sched := &fakeScheduler{}
	h := New(s, WithScheduler(sched))
	h.SaveState(meta("initial"))

	setX(t, s, 3)
	h.SaveDebounced(meta("nudge"))
	if !h.CanUndo() {
		t.Error("pending save should be undoable")
	}
	if err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if xOf(s) != 0 || h.Cursor() != 0 || h.Len() != 2 {
		t.Errorf("x=%v cursor=%d len=%d", xOf(s), h.Cursor(), h.Len())
	}
}

func TestManager_ZeroDebounceSavesImmediately(t *testing.T) {
	s := newScene(t)
	h := New(s, WithDebounce(0))
	h.SaveDebounced(meta("x"))
	if h.Len() != 1 || h.HasPending() {
		t.Errorf("len=%d pending=%v", h.Len(), h.HasPending())
	}
}

func TestManager_Clear(t *testing.T) {
	s := newScene(t)
	h := New(s)
	h.SaveState(meta("a"))
	h.SaveState(meta("b"))

	var cleared bool
	h.Notifier().SubscribeTopic(notify.TopicHistoryCleared, func(notify.Change) { cleared = true })
	h.Clear()
	if h.Len() != 0 || h.Cursor() != -1 || !cleared {
		t.Errorf("len=%d cursor=%d cleared=%v", h.Len(), h.Cursor(), cleared)
	}
}

func TestManager_Notifications(t *testing.T) {
	s := newScene(t)
	h := New(s)

	var topics []string
	h.Notifier().SubscribeTopic("history", func(c notify.Change) {
		topics = append(topics, c.Topic)
	})

	h.SaveState(meta("a"))
	setX(t, s, 1)
	h.SaveState(meta("b"))
	_ = h.Undo()
	_ = h.Redo()
	h.JumpToState(0)

	want := []string{
		notify.TopicHistorySaved,
		notify.TopicHistorySaved,
		notify.TopicHistoryUndo,
		notify.TopicHistoryRedo,
		notify.TopicHistoryJump,
	}
	if fmt.Sprint(topics) != fmt.Sprint(want) {
		t.Errorf("topics = %v, want %v", topics, want)
	}
}

func TestManager_Transaction(t *testing.T) {
	s := newScene(t)
	h := New(s)
	h.SaveState(meta("initial"))

	err := h.Transaction(meta("bad"), func() error {
		setX(t, s, 42)
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if xOf(s) != 0 || h.Len() != 1 {
		t.Errorf("rollback failed: x=%v len=%d", xOf(s), h.Len())
	}

	err = h.Transaction(meta("good"), func() error {
		setX(t, s, 42)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if xOf(s) != 42 || h.Len() != 2 {
		t.Errorf("x=%v len=%d", xOf(s), h.Len())
	}
}

func TestManager_TransactionAbsorbsInnerSaves(t *testing.T) {
	s := newScene(t)
	sched := &fakeScheduler{}
	h := New(s, WithScheduler(sched))
	h.SaveState(meta("initial"))

	err := h.Transaction(meta("script"), func() error {
		setX(t, s, 5)
		if h.SaveState(meta("inner")) {
			t.Error("inner save was recorded")
		}
		h.SaveDebounced(meta("nudge"))
		if !errors.Is(h.Undo(), ErrInTransaction) || !errors.Is(h.Redo(), ErrInTransaction) {
			t.Error("undo and redo should be refused inside a transaction")
		}
		if h.JumpToState(0) {
			t.Error("jump should be refused inside a transaction")
		}
		return h.Transaction(meta("nested"), func() error {
			setX(t, s, 9)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if sched.Fire() != 0 {
		t.Error("debounced save scheduled inside a transaction")
	}
	if h.Len() != 2 || h.Entries()[1].Meta.Type != "script" {
		t.Fatalf("entries = %+v", h.Entries())
	}
	if h.InTransaction() {
		t.Error("transaction still open")
	}

	if err := h.Undo(); err != nil {
		t.Fatal(err)
	}
	if xOf(s) != 0 {
		t.Errorf("undo x = %v, want 0", xOf(s))
	}
}

func TestManager_NestedTransactionErrorRollsBackOuter(t *testing.T) {
	s := newScene(t)
	h := New(s)
	h.SaveState(meta("initial"))

	err := h.Transaction(meta("outer"), func() error {
		setX(t, s, 5)
		return h.Transaction(meta("inner"), func() error {
			setX(t, s, 7)
			return errors.New("inner failed")
		})
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if xOf(s) != 0 || h.Len() != 1 {
		t.Errorf("x=%v len=%d, want 0 and 1", xOf(s), h.Len())
	}
}

func TestManager_EmptyTransactionRecordsNothing(t *testing.T) {
	s := newScene(t)
	h := New(s)
	h.SaveState(meta("initial"))

	if err := h.Transaction(meta("noop"), func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1", h.Len())
	}
}
