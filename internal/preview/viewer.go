package preview

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/pagecraft/internal/batch"
	"github.com/dshills/pagecraft/internal/editor"
	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/logging"
)

// Nudge distances in pixels for arrow keys, without and with Shift.
const (
	nudgeStep      = 1.0
	nudgeStepLarge = 10.0
)

// Viewer runs an interactive preview of a session.
type Viewer struct {
	mu      sync.Mutex
	session *editor.Session
	painter *Painter
	logger  *log.Logger

	pressed bool
	status  string
}

// ViewerOption configures a Viewer.
type ViewerOption func(*Viewer)

// WithPainter replaces the default painter.
func WithPainter(p *Painter) ViewerOption {
	return func(v *Viewer) {
		if p != nil {
			v.painter = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ViewerOption {
	return func(v *Viewer) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewViewer creates a viewer for session.
func NewViewer(session *editor.Session, opts ...ViewerOption) *Viewer {
	v := &Viewer{
		session: session,
		painter: NewPainter(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Status returns the status line text.
func (v *Viewer) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

func (v *Viewer) setStatus(s string) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
}

// Draw paints the current session state onto dst.
func (v *Viewer) Draw(dst Surface) {
	h := v.session.History
	status := fmt.Sprintf("%d selected  history %d/%d", v.session.Selection.Len(), h.Cursor()+1, h.Len())
	if msg := v.Status(); msg != "" {
		status += "  " + msg
	}
	v.painter.Paint(dst, Capture(v.session, status))
}

// Show opens the terminal, runs the viewer until quit or ctx is done, and
// restores the terminal.
func Show(ctx context.Context, session *editor.Session, opts ...ViewerOption) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	screen.EnableMouse()
	return NewViewer(session, opts...).Run(ctx, screen)
}

// Run draws and handles events on screen until quit or ctx is done.
func (v *Viewer) Run(ctx context.Context, screen tcell.Screen) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
		case <-done:
		}
	}()

	v.Draw(screen)
	screen.Show()

	for {
		ev := screen.PollEvent()
		if ev == nil {
			return nil
		}
		if _, ok := ev.(*tcell.EventInterrupt); ok {
			return ctx.Err()
		}
		if _, ok := ev.(*tcell.EventResize); ok {
			screen.Sync()
		}
		if v.Handle(ev) {
			return nil
		}
		v.Draw(screen)
		screen.Show()
	}
}

// Handle applies one event to the session and reports whether the viewer
// should quit.
func (v *Viewer) Handle(ev tcell.Event) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ev)
	case *tcell.EventMouse:
		v.handleMouse(ev)
	}
	return false
}

func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	s := v.session
	step := nudgeStep
	if ev.Modifiers()&tcell.ModShift != 0 {
		step = nudgeStepLarge
	}

	switch ev.Key() {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyEscape:
		s.Escape()
	case tcell.KeyCtrlZ:
		v.report("undo", s.Undo())
	case tcell.KeyCtrlY:
		v.report("redo", s.Redo())
	case tcell.KeyDelete, tcell.KeyBackspace, tcell.KeyBackspace2:
		v.result(s.Ops.DeleteSelected())
	case tcell.KeyLeft:
		v.result(s.Ops.Nudge(-step, 0))
	case tcell.KeyRight:
		v.result(s.Ops.Nudge(step, 0))
	case tcell.KeyUp:
		v.result(s.Ops.Nudge(0, -step))
	case tcell.KeyDown:
		v.result(s.Ops.Nudge(0, step))
	case tcell.KeyRune:
		return v.handleRune(ev.Rune())
	}
	return false
}

func (v *Viewer) handleRune(r rune) bool {
	s := v.session
	switch r {
	case 'q':
		return true
	case 'u':
		v.report("undo", s.Undo())
	case 'U':
		v.report("redo", s.Redo())
	case 'a':
		v.setStatus(fmt.Sprintf("selected %d", s.Selection.SelectAll()))
	case 'd':
		v.result(s.Ops.DuplicateSelected())
	case 'g':
		v.result(s.Ops.Group(""))
	case 'G':
		v.result(s.Ops.Ungroup())
	case 'l':
		v.result(s.Ops.LockSelected())
	case 'L':
		v.result(s.Ops.UnlockSelected())
	case 'h':
		v.result(s.Ops.HideSelected())
	case 'H':
		v.result(s.Ops.ShowSelected())
	case ']':
		v.result(s.Ops.BringToFront())
	case '[':
		v.result(s.Ops.SendToBack())
	case '1':
		v.result(s.Ops.Align(geometry.AlignLeft))
	case '2':
		v.result(s.Ops.Align(geometry.AlignCenterHorizontal))
	case '3':
		v.result(s.Ops.Align(geometry.AlignRight))
	case '4':
		v.result(s.Ops.Align(geometry.AlignTop))
	case '5':
		v.result(s.Ops.Align(geometry.AlignCenterVertical))
	case '6':
		v.result(s.Ops.Align(geometry.AlignBottom))
	case '7':
		v.result(s.Ops.Distribute(geometry.Horizontal))
	case '8':
		v.result(s.Ops.Distribute(geometry.Vertical))
	}
	return false
}

// handleMouse turns button 1 press, motion and release into pointer events
// at the center of the cell.
func (v *Viewer) handleMouse(ev *tcell.EventMouse) {
	col, row := ev.Position()
	p := v.painter.CellToPoint(col, row)
	down := ev.Buttons()&tcell.Button1 != 0

	v.mu.Lock()
	pressed := v.pressed
	v.pressed = down
	v.mu.Unlock()

	switch {
	case down && !pressed:
		mods := ev.Modifiers()
		v.session.PointerDown(p, editor.Modifiers{
			Shift: mods&tcell.ModShift != 0,
			Meta:  mods&(tcell.ModCtrl|tcell.ModAlt|tcell.ModMeta) != 0,
		})
	case down && pressed:
		v.session.PointerMove(p)
	case !down && pressed:
		v.session.PointerUp(p)
	}
}

func (v *Viewer) result(r batch.Result) {
	if !r.Applied {
		v.logger.Debug("command not applied", "action", r.Action, "message", r.Message)
	}
	v.setStatus(r.String())
}

func (v *Viewer) report(action string, err error) {
	if err != nil {
		v.setStatus(action + ": " + err.Error())
		return
	}
	v.setStatus(action)
}
