package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("queue full")
	ErrClosed = errors.New("queue closed")

	// ErrAbandoned is passed to Job.Drop for a job that was accepted but will not run.
	ErrAbandoned = errors.New("job abandoned")
)
