package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/dshills/pagecraft/internal/logging"
)

// DefaultReloadDelay coalesces bursts of writes into one reload.
const DefaultReloadDelay = 100 * time.Millisecond

// Watcher reloads a config file when it changes.
//
// The file's directory is watched so that editors which replace the file
// on save are still seen.
type Watcher struct {
	mu sync.Mutex

	path  string
	fsw   *fsnotify.Watcher
	delay time.Duration
	timer *time.Timer

	current  Config
	handlers []func(Config)
	errors   []func(error)

	logger *log.Logger

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithReloadDelay sets the debounce delay for reloads.
func WithReloadDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *log.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher loads path and starts watching it.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(abs)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:    abs,
		fsw:     fsw,
		delay:   DefaultReloadDelay,
		current: cfg,
		logger:  logging.Discard(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Current returns the last successfully loaded config.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// OnChange registers fn to receive each reloaded config.
func (w *Watcher) OnChange(fn func(Config)) {
	w.mu.Lock()
	w.handlers = append(w.handlers, fn)
	w.mu.Unlock()
}

// OnError registers fn to receive reload and watch errors.
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	w.errors = append(w.errors, fn)
	w.mu.Unlock()
}

// Reload loads the file now and notifies handlers on success.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		w.report(err)
		return err
	}

	w.mu.Lock()
	w.current = cfg
	handlers := append([]func(Config){}, w.handlers...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)
	for _, h := range handlers {
		h(cfg)
	}
	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				w.schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

// schedule starts or restarts the reload timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Reset(w.delay)
		return
	}
	w.timer = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			_ = w.Reload()
		}
	})
}

func (w *Watcher) report(err error) {
	w.mu.Lock()
	handlers := append([]func(error){}, w.errors...)
	w.mu.Unlock()

	var verr *ValidationError
	if errors.As(err, &verr) {
		w.logger.Warn("config rejected", "path", w.path, "err", err)
	} else {
		w.logger.Error("config reload failed", "path", w.path, "err", err)
	}
	for _, h := range handlers {
		h(err)
	}
}
