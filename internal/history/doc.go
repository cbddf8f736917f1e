// Package history provides linear undo/redo over scene snapshots.
//
// The Manager keeps a list of entries and a cursor pointing at the entry that
// matches the current scene. Each entry holds a serialized scene snapshot
// and metadata describing the action that produced it.
//
// # Saving
//
// Callers commit explicitly once a user-visible action has finished:
//
//	h.SaveState(history.Meta{Type: "align", Description: "Align left"})
//
// Saving while the cursor is not at the tail discards the redo branch. The
// list is capped; the oldest entries are evicted first and the cursor is
// adjusted so it keeps pointing at the same entry.
//
// # Debounced saves
//
// Continuous streams such as drags or keyboard nudges use SaveDebounced. Only
// the state at the end of a quiet period becomes an entry. Flush forces a
// pending save, CancelPending drops it.
//
// # Undo and redo
//
// Undo and Redo move the cursor and restore the snapshot it points at. While
// a snapshot is being restored SaveState is ignored, so observers reacting to
// the restored scene cannot record it as a new action. A failed restore
// leaves the cursor and the entries untouched.
package history
