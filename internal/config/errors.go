package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrUnknownKey indicates a file key that no setting matches.
	ErrUnknownKey = errors.New("unknown setting")

	// ErrWatcherClosed indicates the watcher was already closed.
	ErrWatcherClosed = errors.New("watcher is closed")
)

// ParseError reports a file that is not valid TOML or names an unknown
// setting. Line and Column are zero when the decoder gave no position.
type ParseError struct {
	Path         string
	Line, Column int
	Message      string
	Err          error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("config %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("config %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError describes a validation failure for a setting.
type ValidationError struct {
	// Path is the setting path that failed validation, e.g. "snap.threshold".
	Path string
	// Message describes the validation error.
	Message string
	// Value is the invalid value.
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}
