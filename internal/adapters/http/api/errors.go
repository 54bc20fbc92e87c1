package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	service "github.com/okian/arcadehub/internal/app"
	"github.com/okian/arcadehub/internal/domain/catalog"
	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/internal/domain/profile"
	"github.com/okian/arcadehub/internal/domain/submission"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// opError tags an error with the handler operation that produced it.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

// NewKind returns an error of kind for op.
func NewKind(op string, kind error) error {
	return &opError{op: op, err: kind}
}

// Wrap attaches op to err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// WrapKind marks cause as an error of kind for op.
func WrapKind(op string, kind, cause error) error {
	return &opError{op: op, err: fmt.Errorf("%w: %v", kind, cause)}
}

// classify maps a hub error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, submission.ErrInvalidSubmission):
		return http.StatusBadRequest, "invalid_submission"
	case errors.Is(err, profile.ErrInvalidProfile):
		return http.StatusBadRequest, "invalid_profile"
	case errors.Is(err, catalog.ErrNotPlayable):
		return http.StatusBadRequest, "not_playable"
	case errors.Is(err, catalog.ErrUnknownGame):
		return http.StatusNotFound, "unknown_game"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, service.ErrNotTerminal):
		return http.StatusConflict, "not_terminal"
	case errors.Is(err, service.ErrSubmissionInFlight):
		return http.StatusConflict, "submission_in_flight"
	case errors.Is(err, submission.ErrBackpressure):
		return http.StatusServiceUnavailable, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, model.ErrRemoteFailure):
		return http.StatusBadGateway, "remote_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := ""
	if status < http.StatusInternalServerError || status == http.StatusBadGateway {
		msg = err.Error()
	}
	httpx.WriteError(w, status, code, msg)
}

// writeSubmitError reports a failed submission with the player-facing text.
func writeSubmitError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	httpx.WriteError(w, status, code, submission.Message(err))
}

func errMissing(field string) error {
	return fmt.Errorf("missing %s", field)
}

func errUnknownKind(k any) error {
	return fmt.Errorf("unknown input kind %q", k)
}
