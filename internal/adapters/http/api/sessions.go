package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	service "github.com/okian/arcadehub/internal/app"
	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/submission"
)

// SessionsDependencies defines the session lifecycle operations.
type SessionsDependencies interface {
	CreateSession(ctx context.Context, gameID string) (service.SessionView, error)
	Session(ctx context.Context, id string) (service.SessionView, error)
	StartSession(ctx context.Context, id string) (service.SessionView, error)
	ResetSession(ctx context.Context, id string) (service.SessionView, error)
	ApplyInput(ctx context.Context, id string, ev engine.Event) (service.SessionView, bool, error)
	CloseSession(ctx context.Context, id string) error
	SubmitSession(ctx context.Context, id string) (<-chan submission.Result, error)
}

// SessionsHandler handles play session requests.
type SessionsHandler struct {
	deps       SessionsDependencies
	submitWait time.Duration
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionsDependencies, submitWait time.Duration) *SessionsHandler {
	return &SessionsHandler{deps: deps, submitWait: submitWait}
}

type createSessionRequest struct {
	GameID string `json:"gameId"`
}

// InputResponse is returned by POST /sessions/{id}/input.
type InputResponse struct {
	Applied bool                `json:"applied"`
	Session service.SessionView `json:"session"`
}

// SubmitResponse is returned by POST /sessions/{id}/submit.
type SubmitResponse struct {
	SessionID string                   `json:"sessionId"`
	GameID    string                   `json:"gameId,omitempty"`
	Score     *int                     `json:"score,omitempty"`
	Status    service.SubmissionStatus `json:"status"`
	Message   string                   `json:"message"`
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var req createSessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	req.GameID = strings.TrimSpace(req.GameID)
	if req.GameID == "" {
		writeError(w, WrapKind(op, ErrBadRequest, errMissing("gameId")))
		return
	}
	v, err := h.deps.CreateSession(r.Context(), req.GameID)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/sessions/"+v.ID)
	httpx.WriteJSON(w, http.StatusCreated, v)
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "api.get_session", h.deps.Session)
}

// HandleStart handles POST /sessions/{id}/start requests.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "api.start_session", h.deps.StartSession)
}

// HandleReset handles POST /sessions/{id}/reset requests.
func (h *SessionsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "api.reset_session", h.deps.ResetSession)
}

func (h *SessionsHandler) view(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, string) (service.SessionView, error),
) {
	v, err := fn(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

// HandleInput handles POST /sessions/{id}/input requests. Input the game
// ignores is not an error: the response reports applied=false.
func (h *SessionsHandler) HandleInput(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_input"
	var ev engine.Event
	if err := httpx.DecodeJSON(r, &ev); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	switch ev.Kind {
	case engine.EventCell, engine.EventClick, engine.EventAnswer:
	default:
		writeError(w, WrapKind(op, ErrBadRequest, errUnknownKind(ev.Kind)))
		return
	}
	v, applied, err := h.deps.ApplyInput(r.Context(), chi.URLParam(r, "sessionID"), ev)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, InputResponse{Applied: applied, Session: v})
}

// HandleClose handles DELETE /sessions/{id} requests.
func (h *SessionsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, Wrap("api.close_session", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubmit handles POST /sessions/{id}/submit requests. By default the
// handler waits for the scoring service and reports the settled result.
// With ?async=true, or when the wait runs out, it answers 202 and the
// outcome appears on the session view.
func (h *SessionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_session"
	id := chi.URLParam(r, "sessionID")
	res, err := h.deps.SubmitSession(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	pending := SubmitResponse{SessionID: id, Status: service.SubmissionPending, Message: "Submitting score"}
	if r.URL.Query().Get("async") == "true" {
		httpx.WriteJSON(w, http.StatusAccepted, pending)
		return
	}

	wait := time.NewTimer(h.submitWait)
	defer wait.Stop()
	select {
	case out := <-res:
		if out.Err != nil {
			writeSubmitError(w, out.Err)
			return
		}
		score := out.Score
		httpx.WriteJSON(w, http.StatusOK, SubmitResponse{
			SessionID: id,
			GameID:    out.GameID,
			Score:     &score,
			Status:    service.SubmissionAccepted,
			Message:   submission.Message(nil),
		})
	case <-wait.C:
		httpx.WriteJSON(w, http.StatusAccepted, pending)
	case <-r.Context().Done():
	}
}
