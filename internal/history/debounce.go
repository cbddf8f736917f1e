package history

import (
	"time"

	"github.com/dshills/pagecraft/internal/notify"
)

// Timer is a scheduled callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules on the runtime timer.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SaveDebounced schedules a save after the debounce period. A call made
// while a save is pending restarts the period; the last meta wins.
func (m *Manager) SaveDebounced(meta Meta) {
	m.mu.Lock()
	if m.restoring || m.txDepth > 0 {
		m.mu.Unlock()
		return
	}
	if m.debounce <= 0 {
		m.stopPendingLocked()
		change, ok := m.saveLocked(meta)
		m.mu.Unlock()
		if ok {
			m.notifier.Publish(change)
		}
		return
	}

	m.stopPendingLocked()
	m.gen++
	gen := m.gen
	m.pending = &pendingSave{meta: meta, gen: gen}
	m.pending.timer = m.scheduler.AfterFunc(m.debounce, func() {
		m.firePending(gen)
	})
	m.mu.Unlock()
}

// firePending runs the save for generation gen unless it was superseded.
func (m *Manager) firePending(gen uint64) {
	m.mu.Lock()
	if m.pending == nil || m.pending.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.restoring {
		m.pending = nil
		m.mu.Unlock()
		return
	}
	saved := m.flushLocked(nil)
	m.mu.Unlock()
	m.publishAll(saved)
}

// Flush performs a pending debounced save now. It reports whether a save
// was pending.
func (m *Manager) Flush() bool {
	m.mu.Lock()
	if m.pending == nil || m.restoring {
		m.mu.Unlock()
		return false
	}
	saved := m.flushLocked(nil)
	m.mu.Unlock()
	m.publishAll(saved)
	return true
}

// CancelPending drops a pending debounced save.
func (m *Manager) CancelPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	had := m.pending != nil
	m.stopPendingLocked()
	return had
}

// HasPending reports whether a debounced save is waiting.
func (m *Manager) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// SetDebounce changes the quiet period for later SaveDebounced calls.
func (m *Manager) SetDebounce(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	m.debounce = d
	m.mu.Unlock()
}

// Debounce returns the quiet period.
func (m *Manager) Debounce() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debounce
}

// flushLocked saves the pending entry and appends its change to out.
func (m *Manager) flushLocked(out []notify.Change) []notify.Change {
	p := m.pending
	m.stopPendingLocked()
	if p == nil {
		return out
	}
	if change, ok := m.saveLocked(p.meta); ok {
		out = append(out, change)
	}
	return out
}

func (m *Manager) stopPendingLocked() {
	if m.pending == nil {
		return
	}
	if m.pending.timer != nil {
		m.pending.timer.Stop()
	}
	m.pending = nil
}
