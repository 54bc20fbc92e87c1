// Package api is the hub HTTP API a browser front end talks to.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/arcadehub/internal/adapters/auth"
	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	service "github.com/okian/arcadehub/internal/app"
	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/leaderboard"
	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/internal/domain/submission"
	"github.com/okian/arcadehub/pkg/logger"
)

const defaultSubmitWait = 15 * time.Second

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the hub implementation.
type Dependencies interface {
	StatsProvider

	Games() []model.GameInfo

	CreateSession(ctx context.Context, gameID string) (service.SessionView, error)
	Session(ctx context.Context, id string) (service.SessionView, error)
	StartSession(ctx context.Context, id string) (service.SessionView, error)
	ResetSession(ctx context.Context, id string) (service.SessionView, error)
	ApplyInput(ctx context.Context, id string, ev engine.Event) (service.SessionView, bool, error)
	CloseSession(ctx context.Context, id string) error
	SubmitSession(ctx context.Context, id string) (<-chan submission.Result, error)

	TopScores(ctx context.Context, gameID string) ([]leaderboard.Entry, error)
	CallerBest(ctx context.Context, gameID string) (leaderboard.Entry, bool, error)

	Profile(ctx context.Context) (model.Profile, bool, error)
	SaveProfile(ctx context.Context, displayName string) error
}

// Server wires HTTP routes for the hub API.
type Server struct {
	authority  *auth.Authority
	submitWait time.Duration
	logger     logger.Logger

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	gamesHandler       *GamesHandler
	sessionsHandler    *SessionsHandler
	leaderboardHandler *LeaderboardHandler
	profileHandler     *ProfileHandler
}

// NewServer creates a new API server with all handlers. authority verifies
// bearer tokens; requests without one are served anonymously.
func NewServer(deps Dependencies, authority *auth.Authority, opts ...Option) *Server {
	s := &Server{
		authority:  authority,
		submitWait: defaultSubmitWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.gamesHandler = NewGamesHandler(deps)
	s.sessionsHandler = NewSessionsHandler(deps, s.submitWait)
	s.leaderboardHandler = NewLeaderboardHandler(deps)
	s.profileHandler = NewProfileHandler(deps)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// Register attaches all routes and middleware to r.
func (s *Server) Register(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpx.Metrics)
	r.Use(httpx.RequestLogger(s.logger))

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.authority, false, writeAuthError))

		r.Get("/games", s.gamesHandler.HandleList)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.sessionsHandler.HandleCreate)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.sessionsHandler.HandleGet)
				r.Delete("/", s.sessionsHandler.HandleClose)
				r.Post("/start", s.sessionsHandler.HandleStart)
				r.Post("/reset", s.sessionsHandler.HandleReset)
				r.Post("/input", s.sessionsHandler.HandleInput)
				r.Post("/submit", s.sessionsHandler.HandleSubmit)
			})
		})

		r.Get("/leaderboards/{gameID}", s.leaderboardHandler.HandleTop)
		r.Get("/leaderboards/{gameID}/me", s.leaderboardHandler.HandleMine)

		r.Get("/profile", s.profileHandler.HandleGet)
		r.Put("/profile", s.profileHandler.HandlePut)
	})
}

func writeAuthError(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="arcade"`)
	httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
}
