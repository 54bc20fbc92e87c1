// Package scoresvc is the reference scoring service: an append-only score
// store and a profile store behind a JWT-authenticated JSON API.
package scoresvc

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/arcadehub/internal/adapters/auth"
	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	"github.com/okian/arcadehub/internal/adapters/repository"
	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
)

const (
	defaultLimit   = 10
	defaultMax     = 100
	maxDisplayName = 32
)

// Server serves the scoring API over a repository.Store.
type Server struct {
	store     repository.Store
	authority *auth.Authority
	devTokens bool
	maxLimit  int
	logger    logger.Logger
}

// NewServer returns a Server over store.
func NewServer(store repository.Store, authority *auth.Authority, opts ...Option) *Server {
	s := &Server{
		store:     store,
		authority: authority,
		maxLimit:  defaultMax,
		logger:    logger.Get().Named("scoresvc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpx.Metrics)
	r.Use(httpx.RequestLogger(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		// Public reads.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.authority, false, writeAuthError))
			r.Get("/games/{gameID}/scores", s.handleTopScores)
			r.Get("/profiles/{principal}", s.handleGetProfile)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.authority, true, writeAuthError))
			r.Post("/scores", s.handleSubmit)
			r.Get("/games/{gameID}/scores/me", s.handleBest)
			r.Put("/profiles/me", s.handlePutProfile)
		})
		if s.devTokens {
			r.Post("/tokens", s.handleIssueToken)
		}
	})
	return r
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	var req ScoreRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	sc := repository.Score{
		ID:          uuid.NewString(),
		Principal:   id.Principal,
		GameID:      strings.TrimSpace(req.GameID),
		Score:       req.Score,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.store.Append(r.Context(), sc); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "score stored",
		logger.String("principal", id.Principal),
		logger.String("game", sc.GameID),
		logger.Int("score", sc.Score))
	httpx.WriteJSON(w, http.StatusCreated, Score{
		ID:          sc.ID,
		Principal:   sc.Principal,
		GameID:      sc.GameID,
		Score:       sc.Score,
		SubmittedAt: sc.SubmittedAt,
	})
}

func (s *Server) handleTopScores(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpx.WriteError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, s.maxLimit)
	}
	rows, err := s.store.Top(r.Context(), gameID, limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	out := ScoresResponse{GameID: gameID, Scores: make([]Score, 0, len(rows))}
	names := make(map[string]string)
	for _, row := range rows {
		out.Scores = append(out.Scores, s.toWire(r, row, names))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	row, err := s.store.Best(r.Context(), chi.URLParam(r, "gameID"), id.Principal)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.toWire(r, row, map[string]string{}))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")
	p, err := s.store.GetProfile(r.Context(), principal)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Profile{Principal: principal, DisplayName: p.DisplayName})
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	var req Profile
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayName {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_profile", "display name must be 1 to 32 characters")
		return
	}
	if err := s.store.PutProfile(r.Context(), id.Principal, model.Profile{DisplayName: name}); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Profile{Principal: id.Principal, DisplayName: name})
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	tok, exp, err := s.authority.Issue(strings.TrimSpace(req.Principal))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, TokenResponse{Token: tok, ExpiresAt: exp})
}

// toWire converts row, resolving the display name once per principal.
func (s *Server) toWire(r *http.Request, row repository.Score, names map[string]string) Score {
	name, ok := names[row.Principal]
	if !ok {
		if p, err := s.store.GetProfile(r.Context(), row.Principal); err == nil {
			name = p.DisplayName
		}
		names[row.Principal] = name
	}
	return Score{
		ID:          row.ID,
		Principal:   row.Principal,
		DisplayName: name,
		GameID:      row.GameID,
		Score:       row.Score,
		SubmittedAt: row.SubmittedAt,
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, repository.ErrInvalidScore), errors.Is(err, repository.ErrInvalidLimit):
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		s.logger.Error(r.Context(), "store failure", logger.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "storage failure")
	}
}

func writeAuthError(w http.ResponseWriter, _ *http.Request, err error) {
	msg := "invalid or expired token"
	if errors.Is(err, auth.ErrMissingToken) {
		msg = "missing bearer token"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="arcade"`)
	httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", msg)
}
