// Package script runs Lua scripts against an editing session.
//
// Scripts execute in a sandboxed gopher-lua state with only the base, table,
// string and math libraries. File loading and require are removed and print
// writes to the configured output. A global "editor" table exposes the
// session:
//
//	editor.select("hero")
//	editor.toggle("cta")
//	local ok, msg = editor.align("left")
//	if not ok then print(msg) end
//	editor.undo()
//
// Batch functions return (applied, message). History positions are
// 1-based, matching Lua conventions: editor.cursor() is 1 after the
// initial entry and editor.jump(1) returns to it.
//
// Each execution is bounded by a timeout and by a budget of editor calls.
package script
