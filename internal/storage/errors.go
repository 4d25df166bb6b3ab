package storage

import "errors"

var (
	// ErrRelocateFailed is returned when a finished artifact cannot be moved
	// to its destination. The artifact is left in place for manual recovery.
	ErrRelocateFailed = errors.New("failed to relocate artifact")

	// ErrPathEscapes is returned for a destination outside the allowed root
	ErrPathEscapes = errors.New("path escapes base directory")
)
