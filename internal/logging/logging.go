// Package logging builds the structured loggers used across pagecraft.
//
// Loggers are charmbracelet/log instances. Components receive a logger
// through their options and tag it with a "component" key; commands carry
// theirs through context.Context.
package logging

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// New creates a logger writing to w at level, with "HH:MM:SS.ms" timestamps.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// ParseLevel parses a level name. Unknown names map to info.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Component returns l tagged with the component name.
func Component(l *log.Logger, name string) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l.With("component", name)
}

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or log.Default().
func FromContext(ctx context.Context) *log.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
			return l
		}
	}
	return log.Default()
}
