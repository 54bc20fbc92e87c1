package inflight

import "errors"

// Sentinel errors returned by TryAcquire.
var (
	ErrHeld     = errors.New("key already in flight")
	ErrCapacity = errors.New("in-flight capacity reached")
)
