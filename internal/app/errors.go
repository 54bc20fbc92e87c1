package service

import "errors"

// Sentinel kinds for hub errors.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotTerminal        = errors.New("game is not finished")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrNotStarted         = errors.New("hub not started")
)
