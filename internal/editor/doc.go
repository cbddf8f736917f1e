// Package editor wires the editing managers into a session and turns pointer
// gestures into selection changes, drags and marquees.
//
// A Session owns one scene and one of each manager: selection, groups,
// guides, history and batch operations. All of them are constructed here and
// handed to each other explicitly.
//
// Gesture policy:
//
//   - A click hits the outermost root-level ancestor of the topmost
//     selectable element under the pointer.
//   - Meta toggles the hit element. Shift selects the range from the anchor.
//   - A plain press on an unselected element selects it alone; moving the
//     pointer then drags the selection.
//   - A press on empty canvas starts a marquee, additive with Shift or Meta.
//     A plain click on empty canvas clears the selection.
//   - Escape, or a release without movement, discards the drag or marquee
//     without touching history.
package editor
