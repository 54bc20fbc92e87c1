package submission

import (
	"errors"

	"github.com/okian/arcadehub/internal/domain/model"
)

// Failure taxonomy of a submission.
var (
	ErrUnauthenticated   = model.ErrUnauthenticated
	ErrRemoteFailure     = model.ErrRemoteFailure
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrBackpressure      = errors.New("submission queue is full")
)

// Notification texts shown to the player.
const (
	MessageSuccess         = "Score submitted successfully!"
	MessageUnauthenticated = "Please login to submit your score"
	MessageFailure         = "Failed to submit score"
)

// Message maps a submission result to the text shown to the player.
func Message(err error) string {
	switch {
	case err == nil:
		return MessageSuccess
	case errors.Is(err, ErrUnauthenticated):
		return MessageUnauthenticated
	default:
		return MessageFailure
	}
}
