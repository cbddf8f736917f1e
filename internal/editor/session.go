package editor

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/pagecraft/internal/batch"
	"github.com/dshills/pagecraft/internal/config"
	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/group"
	"github.com/dshills/pagecraft/internal/guides"
	"github.com/dshills/pagecraft/internal/history"
	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/notify"
	"github.com/dshills/pagecraft/internal/scene"
	"github.com/dshills/pagecraft/internal/selection"
)

// Session is an editing session over one scene.
type Session struct {
	mu sync.Mutex

	Scene     *scene.Scene
	Selection *selection.Model
	Groups    *group.Manager
	Guides    *guides.Engine
	History   *history.Manager
	Ops       *batch.Operations

	snapEnabled bool
	gesture     gesture

	logger *log.Logger
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger    *log.Logger
	scheduler history.Scheduler
}

// WithLogger sets the session logger. Managers get component loggers
// derived from it.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithScheduler replaces the timer source used by history debouncing.
func WithScheduler(s history.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// New builds a session over sc configured by cfg and records the initial
// history entry.
func New(sc *scene.Scene, cfg config.Config, opts ...Option) *Session {
	o := options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	sel := selection.New(sc,
		selection.WithLogger(logging.Component(o.logger, "selection")),
	)
	groups := group.New(sc,
		group.WithPadding(cfg.Group.Padding),
		group.WithLogger(logging.Component(o.logger, "group")),
	)
	gd := guides.New(sc.Canvas(),
		guides.WithThreshold(cfg.Snap.Threshold),
		guides.WithLogger(logging.Component(o.logger, "guides")),
	)
	histOpts := []history.Option{
		history.WithMaxHistorySize(cfg.History.MaxSize),
		history.WithDebounce(cfg.History.Debounce()),
		history.WithLogger(logging.Component(o.logger, "history")),
	}
	if o.scheduler != nil {
		histOpts = append(histOpts, history.WithScheduler(o.scheduler))
	}
	hist := history.New(sc, histOpts...)
	ops := batch.New(sc, sel, groups, hist,
		batch.WithGapPolicy(cfg.Distribute.GapPolicy()),
		batch.WithDuplicateOffset(cfg.Duplicate.Offset()),
		batch.WithLogger(logging.Component(o.logger, "batch")),
	)

	s := &Session{
		Scene:       sc,
		Selection:   sel,
		Groups:      groups,
		Guides:      gd,
		History:     hist,
		Ops:         ops,
		snapEnabled: cfg.Snap.Enabled,
		logger:      o.logger,
	}
	hist.SaveState(history.Meta{Type: "open", Description: "Open scene"})
	s.logger.Debug("session started", "elements", sc.Len())
	return s
}

// ApplyConfig updates the running session from cfg.
func (s *Session) ApplyConfig(cfg config.Config) {
	s.mu.Lock()
	s.snapEnabled = cfg.Snap.Enabled
	s.mu.Unlock()

	s.Guides.SetThreshold(cfg.Snap.Threshold)
	s.Groups.SetPadding(cfg.Group.Padding)
	s.History.SetMaxHistorySize(cfg.History.MaxSize)
	s.History.SetDebounce(cfg.History.Debounce())
	s.Ops.SetGapPolicy(cfg.Distribute.GapPolicy())
	s.Ops.SetDuplicateOffset(cfg.Duplicate.Offset())
	s.logger.Info("config applied",
		"snap", cfg.Snap.Enabled,
		"threshold", cfg.Snap.Threshold,
		"history", cfg.History.MaxSize)
}

// SnapEnabled reports whether drags snap to guides.
func (s *Session) SnapEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapEnabled
}

// Undo cancels any gesture in progress and undoes the last entry.
func (s *Session) Undo() error {
	s.cancelGesture()
	return s.History.Undo()
}

// Redo cancels any gesture in progress and redoes the next entry.
func (s *Session) Redo() error {
	s.cancelGesture()
	return s.History.Redo()
}

// Transaction cancels any gesture in progress and runs fn so that every
// change it makes undoes as one entry described by description. An error
// from fn rolls the scene back.
func (s *Session) Transaction(description string, fn func() error) error {
	s.cancelGesture()
	return s.History.Transaction(history.Meta{Type: "transaction", Description: description}, fn)
}

// Close commits any pending history entry, detaches the selection from the
// scene and shuts down the notifiers of the managers the session owns. The
// scene itself stays usable.
func (s *Session) Close() {
	s.History.Flush()
	s.Selection.Close()
	for _, n := range []*notify.Notifier{
		s.Selection.Notifier(),
		s.Groups.Notifier(),
		s.Guides.Notifier(),
		s.History.Notifier(),
		s.Ops.Notifier(),
	} {
		n.Close()
	}
}

// HitTest returns the element a click at p selects: the outermost group
// holding the topmost selectable element containing p, or that element.
func (s *Session) HitTest(p geometry.Point) (string, bool) {
	all := s.Scene.All()
	for i := len(all) - 1; i >= 0; i-- {
		id := all[i].ID
		if !s.Scene.Selectable(id) {
			continue
		}
		r, ok := s.Scene.AbsoluteRect(id)
		if !ok || !r.Contains(p) {
			continue
		}
		return s.rootOf(id), true
	}
	return "", false
}

// rootOf returns the group a click on id selects, or id itself when it is
// not inside a group.
func (s *Session) rootOf(id string) string {
	if g, ok := s.Groups.OutermostGroup(id); ok {
		return g
	}
	return id
}
