package scramble

import "errors"

// Sentinel errors for word list handling.
var (
	ErrInvalidWord = errors.New("invalid word")
	ErrEmptyList   = errors.New("word list is empty")
)
