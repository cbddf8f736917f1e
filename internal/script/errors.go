package script

import "errors"

// Errors for script execution.
var (
	// ErrStateClosed is returned when running on a closed state.
	ErrStateClosed = errors.New("script state is closed")

	// ErrTimeout is returned when a script runs past its timeout.
	ErrTimeout = errors.New("script timeout")

	// ErrCallLimit is returned when a script exceeds its editor call budget.
	ErrCallLimit = errors.New("script call limit exceeded")
)
