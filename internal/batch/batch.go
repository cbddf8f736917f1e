// Package batch implements the user-level editing commands that act on the
// current selection.
//
// Every command returns a Result. Unmet preconditions, such as aligning a
// single element, are reported as Applied=false with a message for the user
// and never as errors. Selected ids that no longer resolve are skipped and
// listed in Result.Skipped while the rest of the command completes.
//
// Each command that changes the scene records exactly one history entry, so
// undoing "align five elements" restores all five together.
package batch

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/group"
	"github.com/dshills/pagecraft/internal/history"
	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/notify"
	"github.com/dshills/pagecraft/internal/scene"
	"github.com/dshills/pagecraft/internal/selection"
)

const source = "batch"

// DefaultDuplicateOffset is how far duplicates are shifted from their
// originals.
var DefaultDuplicateOffset = geometry.Point{X: 10, Y: 10}

// Result reports the outcome of a command.
type Result struct {
	// Action names the command, e.g. "align".
	Action string
	// Applied is false when a precondition was not met and nothing changed.
	Applied bool
	// Message describes the outcome for the user.
	Message string
	// Affected lists the ids the command changed or created.
	Affected []string
	// Skipped lists selected ids that no longer resolve.
	Skipped []string
}

// String returns the message, prefixed by the action.
func (r Result) String() string {
	if r.Message == "" {
		return r.Action
	}
	return r.Action + ": " + r.Message
}

// Operations runs commands over a scene, its selection, its groups and its
// history.
type Operations struct {
	mu sync.Mutex

	scene     scene.Accessor
	selection *selection.Model
	groups    *group.Manager
	history   *history.Manager

	gapPolicy       geometry.GapPolicy
	duplicateOffset geometry.Point

	notifier *notify.Notifier
	logger   *log.Logger
}

// Option configures Operations.
type Option func(*Operations)

// WithGapPolicy sets how Distribute handles a negative gap.
func WithGapPolicy(p geometry.GapPolicy) Option {
	return func(o *Operations) {
		o.gapPolicy = p
	}
}

// WithDuplicateOffset sets the shift applied to duplicates.
func WithDuplicateOffset(p geometry.Point) Option {
	return func(o *Operations) {
		o.duplicateOffset = p
	}
}

// WithNotifier publishes command outcomes on n.
func WithNotifier(n *notify.Notifier) Option {
	return func(o *Operations) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Operations) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates the command facade. All collaborators are required.
func New(acc scene.Accessor, sel *selection.Model, groups *group.Manager, hist *history.Manager, opts ...Option) *Operations {
	o := &Operations{
		scene:           acc,
		selection:       sel,
		groups:          groups,
		history:         hist,
		gapPolicy:       geometry.GapOverlap,
		duplicateOffset: DefaultDuplicateOffset,
		logger:          logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifier == nil {
		o.notifier = notify.New()
	}
	return o
}

// Notifier returns the notifier command outcomes are published on.
func (o *Operations) Notifier() *notify.Notifier {
	return o.notifier
}

// SetGapPolicy changes the negative-gap policy for Distribute.
func (o *Operations) SetGapPolicy(p geometry.GapPolicy) {
	o.mu.Lock()
	o.gapPolicy = p
	o.mu.Unlock()
}

// SetDuplicateOffset changes the shift applied to duplicates.
func (o *Operations) SetDuplicateOffset(p geometry.Point) {
	o.mu.Lock()
	o.duplicateOffset = p
	o.mu.Unlock()
}

// resolve splits the selection into live and stale ids.
func (o *Operations) resolve() (live, skipped []string) {
	for _, id := range o.selection.IDs() {
		if o.scene.Has(id) {
			live = append(live, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	if len(skipped) > 0 {
		o.logger.Warn("skipping stale ids", "ids", skipped)
	}
	return live, skipped
}

// roots drops ids that have an ancestor in ids, so a selected group and its
// selected child are moved once.
func (o *Operations) roots(ids []string) []string {
	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !o.hasAncestorIn(id, in) {
			out = append(out, id)
		}
	}
	return out
}

func (o *Operations) hasAncestorIn(id string, in map[string]bool) bool {
	parent, ok := o.scene.Parent(id)
	for ok && parent != scene.RootID {
		if in[parent] {
			return true
		}
		parent, ok = o.scene.Parent(parent)
	}
	return false
}

// Roots returns the live selected ids without those whose ancestor is also
// selected.
func (o *Operations) Roots() []string {
	live, _ := o.resolve()
	return o.roots(live)
}

// begin commits a pending debounced save so it is not merged into the next
// command's entry.
func (o *Operations) begin() {
	o.history.Flush()
}

// noop reports an unmet precondition.
func (o *Operations) noop(action, msg string, skipped []string) Result {
	o.logger.Debug("no-op", "action", action, "reason", msg)
	o.notifier.Publish(notify.Change{
		Topic:   notify.TopicBatchNoop,
		Source:  source,
		Message: msg,
		Detail:  action,
	})
	return Result{Action: action, Message: msg, Skipped: skipped}
}

// commit records one history entry for a finished command.
func (o *Operations) commit(action, msg string, affected, skipped []string) Result {
	o.history.SaveState(history.Meta{Type: action, Description: msg})
	o.logger.Debug("applied", "action", action, "affected", len(affected), "skipped", len(skipped))
	return Result{
		Action:   action,
		Applied:  true,
		Message:  msg,
		Affected: affected,
		Skipped:  skipped,
	}
}

// absRects returns the canvas-local rects of ids, in order.
func (o *Operations) absRects(ids []string) []geometry.Rect {
	rects := make([]geometry.Rect, len(ids))
	for i, id := range ids {
		rects[i], _ = o.scene.AbsoluteRect(id)
	}
	return rects
}

// setAbs stores a canvas-local rect in id's parent frame.
func (o *Operations) setAbs(id string, abs geometry.Rect) error {
	parent, _ := o.scene.Parent(id)
	origin := o.scene.Origin(parent)
	return o.scene.SetRect(id, abs.Translate(-origin.X, -origin.Y))
}

// message converts a precondition error into text for the user.
func message(err error) string {
	switch {
	case errors.Is(err, group.ErrTooFewElements):
		return "Select at least 2 elements to group"
	case errors.Is(err, group.ErrMixedParents):
		return "Grouped elements must share a parent"
	case errors.Is(err, group.ErrLocked):
		return "Locked elements cannot be grouped"
	case errors.Is(err, group.ErrNotGroup):
		return "Selection is not a group"
	default:
		return err.Error()
	}
}

// plural formats a count with a noun.
func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// sortByIndex orders sibling-local ids by z-index ascending.
func (o *Operations) sortByIndex(ids []string) []string {
	out := slices.Clone(ids)
	slices.SortStableFunc(out, func(a, b string) int {
		return o.scene.IndexOf(a) - o.scene.IndexOf(b)
	})
	return out
}
