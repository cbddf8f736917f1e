package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/pagecraft/internal/logging"
	"github.com/dshills/pagecraft/internal/notify"
	"github.com/dshills/pagecraft/internal/scene"
)

const source = "history"

// Defaults for a new Manager.
const (
	DefaultMaxHistorySize = 50
	DefaultDebounce       = 500 * time.Millisecond
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrRestoring     = errors.New("restore in progress")
	ErrInTransaction = errors.New("transaction in progress")
)

// RestoreError reports a snapshot that could not be restored.
type RestoreError struct {
	Index int
	Err   error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore history entry %d: %v", e.Index, e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}

// Meta describes the action that produced an entry.
type Meta struct {
	Type        string
	Description string
}

// entry is a recorded scene state.
type entry struct {
	snapshot  []byte
	timestamp time.Time
	meta      Meta
}

// EntryInfo provides read-only info about an entry, for history panels.
type EntryInfo struct {
	Index     int
	Meta      Meta
	Timestamp time.Time
	Current   bool
}

// pendingSave is a debounced save waiting for its timer.
type pendingSave struct {
	meta  Meta
	timer Timer
	gen   uint64
}

// Manager manages undo/redo state for a scene.
type Manager struct {
	mu sync.Mutex

	store   scene.Serializer
	entries []*entry
	cursor  int

	// Re-entrancy guard for restores
	restoring bool

	// Transaction nesting depth; saves are absorbed while positive
	txDepth int

	// Debounce state
	debounce  time.Duration
	scheduler Scheduler
	pending   *pendingSave
	gen       uint64

	// Configuration
	maxSize int

	now      func() time.Time
	notifier *notify.Notifier
	logger   *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxHistorySize caps the number of entries.
func WithMaxHistorySize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

// WithDebounce sets the quiet period for SaveDebounced. Zero saves
// immediately.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.debounce = d
		}
	}
}

// WithScheduler replaces the timer source used by the debounce.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// WithClock sets the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithNotifier publishes history changes on n.
func WithNotifier(n *notify.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a history manager over store. The history starts empty with
// the cursor at -1.
func New(store scene.Serializer, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		cursor:    -1,
		maxSize:   DefaultMaxHistorySize,
		debounce:  DefaultDebounce,
		scheduler: RealScheduler{},
		now:       time.Now,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notify.New()
	}
	return m
}

// Notifier returns the notifier history changes are published on.
func (m *Manager) Notifier() *notify.Notifier {
	return m.notifier
}

// SaveState records the current scene as a new entry after the cursor,
// discarding any redo branch. It returns false when called during a restore
// or when the scene cannot be serialized. A pending debounced save is
// absorbed into this entry.
func (m *Manager) SaveState(meta Meta) bool {
	m.mu.Lock()
	if m.restoring {
		m.mu.Unlock()
		m.logger.Debug("save ignored during restore", "type", meta.Type)
		return false
	}
	if m.txDepth > 0 {
		m.mu.Unlock()
		m.logger.Debug("save absorbed by transaction", "type", meta.Type)
		return false
	}
	m.stopPendingLocked()
	change, ok := m.saveLocked(meta)
	m.mu.Unlock()

	if ok {
		m.notifier.Publish(change)
	}
	return ok
}

// saveLocked appends an entry. Must be called with mu held.
func (m *Manager) saveLocked(meta Meta) (notify.Change, bool) {
	snap, err := m.store.Serialize()
	if err != nil {
		m.logger.Error("snapshot failed", "type", meta.Type, "err", err)
		return notify.Change{}, false
	}

	if m.cursor < len(m.entries)-1 {
		discarded := len(m.entries) - 1 - m.cursor
		m.entries = m.entries[:m.cursor+1]
		m.logger.Debug("redo branch discarded", "entries", discarded)
	}

	m.entries = append(m.entries, &entry{
		snapshot:  snap,
		timestamp: m.now(),
		meta:      meta,
	})
	m.cursor = len(m.entries) - 1
	m.enforceMaxLocked()

	m.logger.Debug("state saved", "type", meta.Type, "cursor", m.cursor, "len", len(m.entries))
	return notify.Change{
		Topic:   notify.TopicHistorySaved,
		Source:  source,
		Message: meta.Description,
		Detail:  meta,
	}, true
}

// enforceMaxLocked evicts oldest entries first, then redo entries, never
// the one under the cursor.
func (m *Manager) enforceMaxLocked() {
	for len(m.entries) > m.maxSize && m.cursor > 0 {
		m.entries[0] = nil
		m.entries = m.entries[1:]
		m.cursor--
	}
	if len(m.entries) > m.maxSize {
		m.entries = m.entries[:m.maxSize]
	}
}

// CanUndo reports whether an earlier entry exists.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor > 0 || (m.pending != nil && m.cursor >= 0)
}

// CanRedo reports whether a later entry exists.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor < len(m.entries)-1
}

// Undo restores the entry before the cursor. A pending debounced save is
// flushed first so the pending action is what gets undone.
func (m *Manager) Undo() error {
	m.mu.Lock()
	if m.restoring {
		m.mu.Unlock()
		return ErrRestoring
	}
	if m.txDepth > 0 {
		m.mu.Unlock()
		return ErrInTransaction
	}
	var saved []notify.Change
	if m.pending != nil {
		saved = m.flushLocked(saved)
	}
	if m.cursor <= 0 {
		m.mu.Unlock()
		m.publishAll(saved)
		return ErrNothingToUndo
	}
	target := m.cursor - 1
	m.mu.Unlock()
	m.publishAll(saved)

	return m.moveTo(target, notify.TopicHistoryUndo)
}

// Redo restores the entry after the cursor.
func (m *Manager) Redo() error {
	m.mu.Lock()
	if m.restoring {
		m.mu.Unlock()
		return ErrRestoring
	}
	if m.txDepth > 0 {
		m.mu.Unlock()
		return ErrInTransaction
	}
	if m.cursor >= len(m.entries)-1 {
		m.mu.Unlock()
		return ErrNothingToRedo
	}
	target := m.cursor + 1
	m.mu.Unlock()

	return m.moveTo(target, notify.TopicHistoryRedo)
}

// JumpToState restores the entry at index. Out-of-range indexes are
// rejected, not clamped. It returns false when rejected or when the
// restore fails.
func (m *Manager) JumpToState(index int) bool {
	m.mu.Lock()
	if m.restoring || m.txDepth > 0 {
		m.mu.Unlock()
		return false
	}
	if index < 0 || index >= len(m.entries) {
		n := len(m.entries)
		m.mu.Unlock()
		m.logger.Warn("jump rejected", "index", index, "len", n)
		m.notifier.Publish(notify.Change{
			Topic:   notify.TopicHistoryRejected,
			Source:  source,
			Message: fmt.Sprintf("history index %d out of range [0,%d)", index, n),
			Detail:  index,
		})
		return false
	}
	m.stopPendingLocked()
	m.mu.Unlock()

	if err := m.moveTo(index, notify.TopicHistoryJump); err != nil {
		m.logger.Error("jump failed", "index", index, "err", err)
		return false
	}
	return true
}

// moveTo restores entry target and moves the cursor there on success. The
// lock is released during the restore so observers of the restored scene
// can query the manager; SaveState calls made meanwhile are ignored.
func (m *Manager) moveTo(target int, topic string) error {
	m.mu.Lock()
	if target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return &RestoreError{Index: target, Err: errors.New("entry no longer exists")}
	}
	e := m.entries[target]
	m.restoring = true
	m.mu.Unlock()

	err := m.restore(e.snapshot)

	m.mu.Lock()
	m.restoring = false
	if err != nil {
		m.mu.Unlock()
		m.logger.Error("restore failed", "index", target, "err", err)
		return &RestoreError{Index: target, Err: err}
	}
	m.cursor = target
	m.mu.Unlock()

	m.logger.Debug("state restored", "topic", topic, "cursor", target)
	m.notifier.Publish(notify.Change{
		Topic:   topic,
		Source:  source,
		Message: e.meta.Description,
		Detail:  target,
	})
	return nil
}

// restore calls the store, converting a panic into an error.
func (m *Manager) restore(snapshot []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("restore panic: %v", r)
		}
	}()
	if len(snapshot) == 0 {
		return errors.New("empty snapshot")
	}
	return m.store.Restore(snapshot)
}

// IsRestoring reports whether a restore is in progress.
func (m *Manager) IsRestoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoring
}

// Cursor returns the cursor index.
func (m *Manager) Cursor() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// Len returns the number of entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns info about every entry, oldest first.
func (m *Manager) Entries() []EntryInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]EntryInfo, len(m.entries))
	for i, e := range m.entries {
		out[i] = EntryInfo{
			Index:     i,
			Meta:      e.meta,
			Timestamp: e.timestamp,
			Current:   i == m.cursor,
		}
	}
	return out
}

// Current returns info about the entry under the cursor.
func (m *Manager) Current() (EntryInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor < 0 {
		return EntryInfo{}, false
	}
	e := m.entries[m.cursor]
	return EntryInfo{Index: m.cursor, Meta: e.meta, Timestamp: e.timestamp, Current: true}, true
}

// Clear removes all entries and any pending save.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.stopPendingLocked()
	m.entries = nil
	m.cursor = -1
	m.mu.Unlock()

	m.notifier.Emit(notify.TopicHistoryCleared, source)
}

// SetMaxHistorySize changes the cap. Excess entries are evicted oldest
// first, keeping the entry under the cursor.
func (m *Manager) SetMaxHistorySize(n int) {
	if n <= 0 {
		n = DefaultMaxHistorySize
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSize = n
	m.enforceMaxLocked()
}

// MaxHistorySize returns the cap.
func (m *Manager) MaxHistorySize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxSize
}

func (m *Manager) publishAll(changes []notify.Change) {
	for _, c := range changes {
		m.notifier.Publish(c)
	}
}
