package api

import (
	"net/http"

	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	"github.com/okian/arcadehub/internal/domain/model"
)

// GamesDependencies lists the catalog.
type GamesDependencies interface {
	Games() []model.GameInfo
}

// GamesHandler handles catalog requests.
type GamesHandler struct {
	deps GamesDependencies
}

// NewGamesHandler creates a new games handler.
func NewGamesHandler(deps GamesDependencies) *GamesHandler {
	return &GamesHandler{deps: deps}
}

// Game is the wire shape of a catalog entry.
type Game struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Playable    bool     `json:"playable"`
	Tags        []string `json:"tags"`
	Difficulty  string   `json:"difficulty"`
}

// HandleList handles GET /games requests. ?playable=true filters to games
// that can be started.
func (h *GamesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	onlyPlayable := r.URL.Query().Get("playable") == "true"
	infos := h.deps.Games()
	out := make([]Game, 0, len(infos))
	for _, g := range infos {
		if onlyPlayable && !g.Playable {
			continue
		}
		tags := g.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, Game{
			ID:          g.ID,
			Title:       g.Title,
			Description: g.Description,
			Category:    g.Category,
			Playable:    g.Playable,
			Tags:        tags,
			Difficulty:  string(g.Difficulty),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
