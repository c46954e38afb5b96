package data

import "errors"

var (
	// ErrJobNotFound is returned when an import job is not found.
	ErrJobNotFound = errors.New("import job not found")
	// ErrJobNotDeletable is returned when attempting to delete a job that is
	// not in pending status.
	ErrJobNotDeletable = errors.New("import job cannot be deleted (must be in pending status)")
	// ErrJobNotCancellable is returned when attempting to cancel a job that
	// already reached a terminal status.
	ErrJobNotCancellable = errors.New("import job cannot be cancelled (already completed or failed)")
)
