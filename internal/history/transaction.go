package history

import (
	"bytes"
	"fmt"
)

// Transaction runs fn as a single undoable action. The scene is captured
// before fn runs and saves made inside fn are absorbed. If fn returns an
// error the capture is restored and no entry is recorded; otherwise the
// resulting state is saved with meta, unless fn left the scene unchanged.
//
// A Transaction started inside another runs fn directly and leaves the
// commit or rollback to the outermost one. Undo, Redo and JumpToState are
// refused while a transaction is open.
func (m *Manager) Transaction(meta Meta, fn func() error) error {
	if m.InTransaction() {
		return fn()
	}

	m.Flush()

	before, err := m.store.Serialize()
	if err != nil {
		return fmt.Errorf("transaction %q: %w", meta.Type, err)
	}

	if err := m.within(fn); err != nil {
		m.mu.Lock()
		m.restoring = true
		m.mu.Unlock()

		rerr := m.restore(before)

		m.mu.Lock()
		m.restoring = false
		m.mu.Unlock()

		if rerr != nil {
			m.logger.Error("transaction rollback failed", "type", meta.Type, "err", rerr)
			return fmt.Errorf("transaction %q: %w (rollback: %v)", meta.Type, err, rerr)
		}
		m.logger.Debug("transaction rolled back", "type", meta.Type, "err", err)
		return err
	}

	if after, err := m.store.Serialize(); err == nil && bytes.Equal(before, after) {
		m.logger.Debug("transaction changed nothing", "type", meta.Type)
		return nil
	}
	m.SaveState(meta)
	return nil
}

// InTransaction reports whether a Transaction is running.
func (m *Manager) InTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txDepth > 0
}

func (m *Manager) within(fn func() error) error {
	m.mu.Lock()
	m.txDepth++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.txDepth--
		m.mu.Unlock()
	}()
	return fn()
}
