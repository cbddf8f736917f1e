package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/pagecraft/internal/editor"
	"github.com/dshills/pagecraft/internal/logging"
)

// Default execution limits.
const (
	DefaultTimeout   = 5 * time.Second
	DefaultCallLimit = 100_000
)

// State is a sandboxed Lua state bound to an editing session.
// Executions are serialized.
type State struct {
	mu sync.Mutex

	L       *lua.LState
	session *editor.Session

	timeout   time.Duration
	callLimit int64
	calls     int64
	exhausted bool

	out    io.Writer
	logger *log.Logger
	closed bool
}

// Option configures a State.
type Option func(*State)

// WithTimeout bounds each execution. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *State) {
		s.timeout = d
	}
}

// WithCallLimit bounds the editor calls one execution may make. Zero
// disables the limit.
func WithCallLimit(n int64) Option {
	return func(s *State) {
		s.callLimit = n
	}
}

// WithOutput sets where print writes.
func WithOutput(w io.Writer) Option {
	return func(s *State) {
		s.out = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a state whose editor table drives session.
func New(session *editor.Session, opts ...Option) *State {
	s := &State{
		session:   session,
		timeout:   DefaultTimeout,
		callLimit: DefaultCallLimit,
		out:       io.Discard,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	s.installSandbox()
	s.registerEditor()
	return s
}

// openSafeLibraries opens the base, table, string and math libraries only.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// DoString executes a chunk of Lua source.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, "<string>", func() error {
		return s.L.DoString(code)
	})
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.run(ctx, path, func() error {
		return s.L.DoFile(path)
	})
}

func (s *State) run(ctx context.Context, name string, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	s.calls = 0
	s.exhausted = false

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: lua panic: %v", name, r)
		}
		if err != nil {
			s.logger.Warn("script failed", "script", name, "err", err)
			return
		}
		s.logger.Debug("script finished", "script", name, "calls", s.calls, "elapsed", time.Since(start))
	}()

	if err = fn(); err != nil {
		switch {
		case s.exhausted:
			return fmt.Errorf("%s: %w", name, ErrCallLimit)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("%s: %w", name, ErrTimeout)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// charge counts one editor call and raises a Lua error once the budget is
// spent.
func (s *State) charge(L *lua.LState) {
	s.calls++
	if s.callLimit > 0 && s.calls > s.callLimit {
		s.exhausted = true
		L.RaiseError("editor call limit of %d exceeded", s.callLimit)
	}
}

// Calls returns the editor calls made by the last execution.
func (s *State) Calls() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Global returns a global variable, for inspecting script results.
func (s *State) Global(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// Close releases the Lua state. It is safe to call more than once.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
