package api

import (
	"context"
	"net/http"

	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	"github.com/okian/arcadehub/internal/domain/model"
)

// ProfileDependencies reads and writes the caller's profile.
type ProfileDependencies interface {
	Profile(ctx context.Context) (model.Profile, bool, error)
	SaveProfile(ctx context.Context, displayName string) error
}

// ProfileHandler handles profile requests.
type ProfileHandler struct {
	deps ProfileDependencies
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps}
}

// ProfileBody is the wire shape of a profile.
type ProfileBody struct {
	DisplayName string `json:"displayName"`
	// NeedsSetup is true until the caller picks a display name.
	NeedsSetup bool `json:"needsSetup"`
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

// HandleGet handles GET /profile requests.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, found, err := h.deps.Profile(r.Context())
	if err != nil {
		writeError(w, Wrap("api.get_profile", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ProfileBody{DisplayName: p.DisplayName, NeedsSetup: !found})
}

// HandlePut handles PUT /profile requests.
func (h *ProfileHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_profile"
	var req profileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SaveProfile(r.Context(), req.DisplayName); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	p, _, err := h.deps.Profile(r.Context())
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ProfileBody{DisplayName: p.DisplayName})
}
