package task

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCanceled is returned by a routine that stopped at a cancellation check
	ErrCanceled = errors.New("task canceled")

	// ErrPanic wraps a panic raised inside a routine
	ErrPanic = errors.New("task panicked")
)
