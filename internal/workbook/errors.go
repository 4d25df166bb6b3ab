package workbook

import "errors"

var (
	// ErrHostFailure wraps any failure while building the summary workbook
	ErrHostFailure = errors.New("pivot host failure")

	// ErrSessionClosed is returned when a closed session is used
	ErrSessionClosed = errors.New("workbook session closed")
)
