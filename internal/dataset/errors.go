package dataset

import "errors"

var (
	// ErrColumnNotFound is returned when a profile names a column the input lacks
	ErrColumnNotFound = errors.New("column not found")

	// ErrNoMatchingData is returned when filtering leaves no rows
	ErrNoMatchingData = errors.New("no matching data")

	// ErrUnsupportedFormat is returned for inputs that are neither csv nor xlsx
	ErrUnsupportedFormat = errors.New("unsupported input format")

	// ErrEmptyInput is returned when the input has no header row
	ErrEmptyInput = errors.New("input has no header row")
)
