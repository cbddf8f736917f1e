package script

import (
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/pagecraft/internal/batch"
	"github.com/dshills/pagecraft/internal/editor"
	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/scene"
)

// registerEditor installs the global editor table.
func (s *State) registerEditor() {
	funcs := map[string]lua.LGFunction{
		// Selection
		"select":     s.selectOne,
		"toggle":     s.toggle,
		"range":      s.selectRange,
		"select_all": s.selectAll,
		"set":        s.setSelection,
		"clear":      s.clear,
		"selected":   s.selected,
		"roots":      s.roots,

		// Batch
		"align":      s.align,
		"distribute": s.distribute,
		"group":      s.group,
		"ungroup":    s.simple(func() batch.Result { return s.session.Ops.Ungroup() }),
		"style":      s.style,
		"delete":     s.simple(func() batch.Result { return s.session.Ops.DeleteSelected() }),
		"duplicate":  s.simple(func() batch.Result { return s.session.Ops.DuplicateSelected() }),
		"front":      s.simple(func() batch.Result { return s.session.Ops.BringToFront() }),
		"back":       s.simple(func() batch.Result { return s.session.Ops.SendToBack() }),
		"lock":       s.flag(s.session.Ops.LockSelected, s.session.Ops.Lock),
		"unlock":     s.flag(s.session.Ops.UnlockSelected, s.session.Ops.Unlock),
		"hide":       s.flag(s.session.Ops.HideSelected, s.session.Ops.Hide),
		"show":       s.flag(s.session.Ops.ShowSelected, s.session.Ops.Show),
		"move":       s.move(s.session.Ops.MoveSelected),
		"nudge":      s.move(s.session.Ops.Nudge),

		// History
		"undo":     s.undo,
		"redo":     s.redo,
		"jump":     s.jump,
		"can_undo": s.canUndo,
		"can_redo": s.canRedo,
		"cursor":   s.cursor,
		"flush":    s.flush,

		"transaction": s.transaction,

		// Gestures
		"pointer_down": s.pointerDown,
		"pointer_move": s.pointerMove,
		"pointer_up":   s.pointerUp,
		"escape":       s.escape,
		"state":        s.state,
		"guides":       s.guides,

		// Queries
		"get":      s.get,
		"rect":     s.rect,
		"elements": s.elements,
		"children": s.children,
		"hit":      s.hit,
		"find":     s.find,
	}

	mod := s.L.NewTable()
	for name, fn := range funcs {
		s.L.SetField(mod, name, s.L.NewFunction(s.metered(fn)))
	}
	s.L.SetGlobal("editor", mod)
}

// metered charges every call against the execution budget.
func (s *State) metered(fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		s.charge(L)
		return fn(L)
	}
}

func pushResult(L *lua.LState, r batch.Result) int {
	L.Push(lua.LBool(r.Applied))
	L.Push(lua.LString(r.Message))
	return 2
}

func pushStrings(L *lua.LState, ids []string) int {
	tbl := L.NewTable()
	for _, id := range ids {
		tbl.Append(lua.LString(id))
	}
	L.Push(tbl)
	return 1
}

// stringArgs reads ids passed either as varargs from position n or as a
// single table.
func stringArgs(L *lua.LState, n int) []string {
	if tbl, ok := L.Get(n).(*lua.LTable); ok {
		ids := make([]string, 0, tbl.Len())
		tbl.ForEach(func(_, v lua.LValue) {
			if str, ok := v.(lua.LString); ok {
				ids = append(ids, string(str))
			}
		})
		return ids
	}
	var ids []string
	for i := n; i <= L.GetTop(); i++ {
		ids = append(ids, L.CheckString(i))
	}
	return ids
}

func checkPoint(L *lua.LState, n int) geometry.Point {
	return geometry.Point{
		X: float64(L.CheckNumber(n)),
		Y: float64(L.CheckNumber(n + 1)),
	}
}

// select(id) -> bool
func (s *State) selectOne(L *lua.LState) int {
	L.Push(lua.LBool(s.session.Selection.SelectSingle(L.CheckString(1))))
	return 1
}

// toggle(id) -> bool
func (s *State) toggle(L *lua.LState) int {
	L.Push(lua.LBool(s.session.Selection.Toggle(L.CheckString(1))))
	return 1
}

// range(anchor, target) -> bool
// With one argument the current anchor is used.
func (s *State) selectRange(L *lua.LState) int {
	anchor, target := L.CheckString(1), L.OptString(2, "")
	if target == "" {
		anchor, target = s.session.Selection.Anchor(), anchor
	}
	L.Push(lua.LBool(s.session.Selection.SelectRange(anchor, target)))
	return 1
}

// select_all() -> number
func (s *State) selectAll(L *lua.LState) int {
	L.Push(lua.LNumber(s.session.Selection.SelectAll()))
	return 1
}

// set(ids...) -> number
func (s *State) setSelection(L *lua.LState) int {
	L.Push(lua.LNumber(s.session.Selection.Set(stringArgs(L, 1))))
	return 1
}

// clear()
func (s *State) clear(L *lua.LState) int {
	s.session.Selection.Clear()
	return 0
}

// selected() -> {ids}
func (s *State) selected(L *lua.LState) int {
	return pushStrings(L, s.session.Selection.IDs())
}

// roots() -> {ids}
// Returns the selected ids that have no selected ancestor.
func (s *State) roots(L *lua.LState) int {
	return pushStrings(L, s.session.Ops.Roots())
}

// align(mode) -> applied, message
func (s *State) align(L *lua.LState) int {
	mode, err := geometry.ParseAlignMode(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	return pushResult(L, s.session.Ops.Align(mode))
}

// distribute(axis) -> applied, message
func (s *State) distribute(L *lua.LState) int {
	axis, err := geometry.ParseAxis(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	return pushResult(L, s.session.Ops.Distribute(axis))
}

// group([name]) -> applied, message, id
func (s *State) group(L *lua.LState) int {
	r := s.session.Ops.Group(L.OptString(1, ""))
	pushResult(L, r)
	if r.Applied && len(r.Affected) > 0 {
		L.Push(lua.LString(r.Affected[0]))
	} else {
		L.Push(lua.LNil)
	}
	return 3
}

// style(property, value) -> applied, message
func (s *State) style(L *lua.LState) int {
	return pushResult(L, s.session.Ops.ApplyStyle(L.CheckString(1), L.CheckString(2)))
}

func (s *State) simple(fn func() batch.Result) lua.LGFunction {
	return func(L *lua.LState) int {
		return pushResult(L, fn())
	}
}

// flag handles lock/unlock/hide/show: on the selection without arguments,
// on the given ids otherwise.
func (s *State) flag(selected func() batch.Result, byID func(...string) batch.Result) lua.LGFunction {
	return func(L *lua.LState) int {
		ids := stringArgs(L, 1)
		if len(ids) == 0 {
			return pushResult(L, selected())
		}
		return pushResult(L, byID(ids...))
	}
}

func (s *State) move(fn func(dx, dy float64) batch.Result) lua.LGFunction {
	return func(L *lua.LState) int {
		d := checkPoint(L, 1)
		return pushResult(L, fn(d.X, d.Y))
	}
}

// undo() -> ok, err
func (s *State) undo(L *lua.LState) int {
	return pushErr(L, s.session.Undo())
}

// redo() -> ok, err
func (s *State) redo(L *lua.LState) int {
	return pushErr(L, s.session.Redo())
}

func pushErr(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// transaction(fn, [description]) -> ok, err
// Everything fn changes undoes as one step. An error raised inside fn rolls
// the scene back and is returned; running out of time or calls is not.
func (s *State) transaction(L *lua.LState) int {
	fn := L.CheckFunction(1)
	desc := L.OptString(2, "Script transaction")

	err := s.session.Transaction(desc, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	})
	if err != nil && (s.exhausted || L.Context().Err() != nil) {
		L.RaiseError("%s", err.Error())
	}
	return pushErr(L, err)
}

// jump(position) -> bool
func (s *State) jump(L *lua.LState) int {
	L.Push(lua.LBool(s.session.History.JumpToState(L.CheckInt(1) - 1)))
	return 1
}

// can_undo() -> bool
func (s *State) canUndo(L *lua.LState) int {
	L.Push(lua.LBool(s.session.History.CanUndo()))
	return 1
}

// can_redo() -> bool
func (s *State) canRedo(L *lua.LState) int {
	L.Push(lua.LBool(s.session.History.CanRedo()))
	return 1
}

// cursor() -> position, length
func (s *State) cursor(L *lua.LState) int {
	L.Push(lua.LNumber(s.session.History.Cursor() + 1))
	L.Push(lua.LNumber(s.session.History.Len()))
	return 2
}

// flush() -> bool
// Commits a pending debounced entry.
func (s *State) flush(L *lua.LState) int {
	L.Push(lua.LBool(s.session.History.Flush()))
	return 1
}

// pointer_down(x, y, [{shift=bool, meta=bool}])
func (s *State) pointerDown(L *lua.LState) int {
	p := checkPoint(L, 1)
	var mods editor.Modifiers
	if tbl, ok := L.Get(3).(*lua.LTable); ok {
		mods.Shift = lua.LVAsBool(tbl.RawGetString("shift"))
		mods.Meta = lua.LVAsBool(tbl.RawGetString("meta"))
	}
	s.session.PointerDown(p, mods)
	return 0
}

// pointer_move(x, y)
func (s *State) pointerMove(L *lua.LState) int {
	s.session.PointerMove(checkPoint(L, 1))
	return 0
}

// pointer_up(x, y)
func (s *State) pointerUp(L *lua.LState) int {
	s.session.PointerUp(checkPoint(L, 1))
	return 0
}

// escape()
func (s *State) escape(L *lua.LState) int {
	s.session.Escape()
	return 0
}

// state() -> string
func (s *State) state(L *lua.LState) int {
	L.Push(lua.LString(s.session.State().String()))
	return 1
}

// guides() -> {{orientation, position, edge, source}}
func (s *State) guides(L *lua.LState) int {
	tbl := L.NewTable()
	for _, g := range s.session.Guides.Current() {
		row := L.NewTable()
		row.RawSetString("orientation", lua.LString(g.Orientation.String()))
		row.RawSetString("position", lua.LNumber(g.Position))
		row.RawSetString("edge", lua.LString(g.Edge.String()))
		row.RawSetString("source", lua.LString(g.SourceID))
		tbl.Append(row)
	}
	L.Push(tbl)
	return 1
}

// get(id) -> table or nil
// Geometry fields are in the parent's frame.
func (s *State) get(L *lua.LState) int {
	el, ok := s.session.Scene.Get(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(elementTable(L, el))
	return 1
}

func elementTable(L *lua.LState, el scene.Element) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LString(el.ID))
	tbl.RawSetString("kind", lua.LString(el.Kind))
	tbl.RawSetString("type", lua.LString(el.Type))
	tbl.RawSetString("name", lua.LString(el.Name))
	tbl.RawSetString("parent", lua.LString(el.ParentID))
	tbl.RawSetString("x", lua.LNumber(el.Rect.X))
	tbl.RawSetString("y", lua.LNumber(el.Rect.Y))
	tbl.RawSetString("w", lua.LNumber(el.Rect.W))
	tbl.RawSetString("h", lua.LNumber(el.Rect.H))
	tbl.RawSetString("locked", lua.LBool(el.Locked))
	tbl.RawSetString("hidden", lua.LBool(el.Hidden))

	children := L.NewTable()
	for _, id := range el.Children {
		children.Append(lua.LString(id))
	}
	tbl.RawSetString("children", children)

	style := L.NewTable()
	keys := make([]string, 0, len(el.Style))
	for k := range el.Style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		style.RawSetString(k, lua.LString(el.Style[k]))
	}
	tbl.RawSetString("style", style)
	return tbl
}

// rect(id) -> x, y, w, h
// Returns canvas-local geometry, or nil for unknown ids.
func (s *State) rect(L *lua.LState) int {
	r, ok := s.session.Scene.AbsoluteRect(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(r.X))
	L.Push(lua.LNumber(r.Y))
	L.Push(lua.LNumber(r.W))
	L.Push(lua.LNumber(r.H))
	return 4
}

// elements() -> {ids}
// Returns every element id, parents before children.
func (s *State) elements(L *lua.LState) int {
	all := s.session.Scene.All()
	ids := make([]string, len(all))
	for i, el := range all {
		ids[i] = el.ID
	}
	return pushStrings(L, ids)
}

// children([id]) -> {ids}
// Without an id, returns the canvas-level elements back to front.
func (s *State) children(L *lua.LState) int {
	return pushStrings(L, s.session.Scene.Children(L.OptString(1, scene.RootID)))
}

// hit(x, y) -> id or nil
func (s *State) hit(L *lua.LState) int {
	id, ok := s.session.HitTest(checkPoint(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(id))
	return 1
}

// find(pattern) -> {ids}
// Matches ids and names against a glob such as "btn-*".
func (s *State) find(L *lua.LState) int {
	ids, err := s.session.Scene.Find(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	return pushStrings(L, ids)
}
