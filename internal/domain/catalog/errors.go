package catalog

import "errors"

// Sentinel errors for catalog lookups.
var (
	ErrUnknownGame = errors.New("unknown game")
	ErrNotPlayable = errors.New("game is not playable yet")
)
