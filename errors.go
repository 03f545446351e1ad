package queuectl

import "errors"

var (
	// Validation errors.
	ErrInvalidJob    = errors.New("queuectl: invalid job")
	ErrInvalidState  = errors.New("queuectl: invalid job state")
	ErrInvalidConfig = errors.New("queuectl: invalid config")

	// Not found errors.
	ErrJobNotFound = errors.New("queuectl: job not found")

	// Conflict errors.
	ErrDuplicateJob = errors.New("queuectl: job already exists")

	// Lock errors. ErrLockBusy is internal to claim scheduling and is
	// never surfaced to the CLI user.
	ErrLockBusy = errors.New("queuectl: lock busy")
)
