package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	"github.com/okian/arcadehub/internal/domain/leaderboard"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	TopScores(ctx context.Context, gameID string) ([]leaderboard.Entry, error)
	CallerBest(ctx context.Context, gameID string) (leaderboard.Entry, bool, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	Principal   string    `json:"principal"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// LeaderboardResponse is returned by GET /leaderboards/{gameID}.
type LeaderboardResponse struct {
	GameID  string             `json:"gameId"`
	Entries []LeaderboardEntry `json:"entries"`
}

// BestResponse is returned by GET /leaderboards/{gameID}/me.
type BestResponse struct {
	GameID string            `json:"gameId"`
	Found  bool              `json:"found"`
	Entry  *LeaderboardEntry `json:"entry,omitempty"`
}

// HandleTop handles GET /leaderboards/{gameID} requests.
func (h *LeaderboardHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	gameID := chi.URLParam(r, "gameID")
	entries, err := h.deps.TopScores(r.Context(), gameID)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	out := LeaderboardResponse{GameID: gameID, Entries: make([]LeaderboardEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, toWire(e))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleMine handles GET /leaderboards/{gameID}/me requests.
func (h *LeaderboardHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_best"
	gameID := chi.URLParam(r, "gameID")
	e, found, err := h.deps.CallerBest(r.Context(), gameID)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	out := BestResponse{GameID: gameID, Found: found}
	if found {
		row := toWire(e)
		out.Entry = &row
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func toWire(e leaderboard.Entry) LeaderboardEntry {
	name := e.DisplayName
	if name == "" {
		name = e.Player.Principal
	}
	return LeaderboardEntry{
		Rank:        e.Rank,
		Principal:   e.Player.Principal,
		DisplayName: name,
		Score:       e.Score,
		SubmittedAt: e.SubmittedAt,
	}
}
