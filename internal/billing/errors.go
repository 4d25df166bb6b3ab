package billing

import "errors"

var (
	// ErrNoInput is returned when no customer or input file was chosen. The
	// operator surfaces treat it as an abandoned selection.
	ErrNoInput = errors.New("no input selected")

	// ErrNotEnoughSources is returned when a merge profile gets too few files
	ErrNotEnoughSources = errors.New("not enough source files")

	// ErrNoDestination is returned when a run has nowhere to put its output
	ErrNoDestination = errors.New("no output destination")
)
