package script

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals load code from outside the script or reach the host.
var blockedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
	"collectgarbage",
	"getfenv",
	"setfenv",
}

// installSandbox removes the blocked globals and redirects print.
func (s *State) installSandbox() {
	for _, name := range blockedGlobals {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		fmt.Fprintln(s.out, strings.Join(parts, "\t"))
		return 0
	}))
}
