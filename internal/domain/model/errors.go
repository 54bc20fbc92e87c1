package model

import "errors"

// Failure kinds shared by the scoring service client and the code that calls it.
var (
	// ErrUnauthenticated means the caller has no identity or the service rejected it.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRemoteFailure covers network errors, timeouts and service rejections.
	ErrRemoteFailure = errors.New("scoring service failure")
)
