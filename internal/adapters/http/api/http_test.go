package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arcadehub/internal/adapters/auth"
	"github.com/okian/arcadehub/internal/adapters/http/api"
	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	service "github.com/okian/arcadehub/internal/app"
	"github.com/okian/arcadehub/internal/domain/catalog"
	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/leaderboard"
	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/internal/domain/profile"
	"github.com/okian/arcadehub/internal/domain/submission"
	"github.com/okian/arcadehub/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFormat("text", io.Discard)
	os.Exit(m.Run())
}

// mockHub implements api.Dependencies.
type mockHub struct {
	sessionErr error
	submitErr  error
	result     *submission.Result
	applied    bool
	lastEvent  engine.Event
	top        []leaderboard.Entry
	topErr     error
	best       *leaderboard.Entry
	profile    model.Profile
	hasProfile bool
	saveErr    error
	principal  string
	closed     []string
}

func (m *mockHub) GetStats() map[string]interface{} {
	return map[string]interface{}{"sessions": 2}
}

func (m *mockHub) Games() []model.GameInfo {
	return []model.GameInfo{
		{ID: "tic-tac-toe", Title: "Tic Tac Toe", Playable: true, Tags: []string{"classic"}, Difficulty: model.DifficultyEasy},
		{ID: "memory-match", Title: "Memory Match"},
	}
}

func (m *mockHub) view(id, gameID string) service.SessionView {
	return service.SessionView{
		ID:         id,
		GameID:     gameID,
		Snapshot:   engine.Snapshot{GameID: gameID},
		Submission: service.SubmissionView{Status: service.SubmissionNone},
	}
}

func (m *mockHub) CreateSession(_ context.Context, gameID string) (service.SessionView, error) {
	switch gameID {
	case "pong":
		return service.SessionView{}, fmt.Errorf("%w: pong", catalog.ErrUnknownGame)
	case "memory-match":
		return service.SessionView{}, fmt.Errorf("%w: memory-match", catalog.ErrNotPlayable)
	}
	return m.view("s-1", gameID), nil
}

func (m *mockHub) Session(_ context.Context, id string) (service.SessionView, error) {
	if m.sessionErr != nil {
		return service.SessionView{}, m.sessionErr
	}
	return m.view(id, "tic-tac-toe"), nil
}

func (m *mockHub) StartSession(ctx context.Context, id string) (service.SessionView, error) {
	return m.Session(ctx, id)
}

func (m *mockHub) ResetSession(ctx context.Context, id string) (service.SessionView, error) {
	return m.Session(ctx, id)
}

func (m *mockHub) ApplyInput(ctx context.Context, id string, ev engine.Event) (service.SessionView, bool, error) {
	m.lastEvent = ev
	v, err := m.Session(ctx, id)
	return v, m.applied, err
}

func (m *mockHub) CloseSession(_ context.Context, id string) error {
	if m.sessionErr != nil {
		return m.sessionErr
	}
	m.closed = append(m.closed, id)
	return nil
}

func (m *mockHub) SubmitSession(ctx context.Context, _ string) (<-chan submission.Result, error) {
	if id, ok := auth.FromContext(ctx); ok {
		m.principal = id.Principal
	}
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	ch := make(chan submission.Result, 1)
	if m.result != nil {
		ch <- *m.result
	}
	return ch, nil
}

func (m *mockHub) TopScores(_ context.Context, gameID string) ([]leaderboard.Entry, error) {
	if m.topErr != nil {
		return nil, m.topErr
	}
	return m.top, nil
}

func (m *mockHub) CallerBest(ctx context.Context, _ string) (leaderboard.Entry, bool, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return leaderboard.Entry{}, false, leaderboard.ErrUnauthenticated
	}
	if m.best == nil {
		return leaderboard.Entry{}, false, nil
	}
	return *m.best, true, nil
}

func (m *mockHub) Profile(ctx context.Context) (model.Profile, bool, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return model.Profile{}, false, profile.ErrUnauthenticated
	}
	return m.profile, m.hasProfile, nil
}

func (m *mockHub) SaveProfile(_ context.Context, displayName string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.profile = model.Profile{DisplayName: strings.TrimSpace(displayName)}
	m.hasProfile = true
	return nil
}

type fixture struct {
	hub     *mockHub
	handler http.Handler
	token   string
}

func newFixture(opts ...api.Option) *fixture {
	a := auth.NewAuthority("secret")
	token, _, err := a.Issue("alice")
	if err != nil {
		panic(err)
	}
	hub := &mockHub{}
	return &fixture{hub: hub, handler: api.NewServer(hub, a, opts...).Handler(), token: token}
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the hub API", t, func() {
		f := newFixture()

		Convey("/healthz answers JSON by default", func() {
			w := f.do(http.MethodGet, "/healthz", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](w)["status"], ShouldEqual, "ok")
		})

		Convey("/healthz serves Prometheus text to scrapers", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			f.handler.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "arcade_hub_")
		})

		Convey("/metrics is exposed", func() {
			w := f.do(http.MethodGet, "/metrics", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("/stats reports hub statistics", func() {
			w := f.do(http.MethodGet, "/stats", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]any](w)["sessions"], ShouldEqual, float64(2))
		})
	})
}

func TestGames(t *testing.T) {
	Convey("Given the catalog endpoint", t, func() {
		f := newFixture()

		Convey("All games are listed with their metadata", func() {
			w := f.do(http.MethodGet, "/games", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			games := decode[[]api.Game](w)
			So(len(games), ShouldEqual, 2)
			So(games[0].Difficulty, ShouldEqual, "easy")
			So(games[1].Tags, ShouldNotBeNil)
		})

		Convey("playable=true filters coming-soon entries", func() {
			w := f.do(http.MethodGet, "/games?playable=true", "", false)
			games := decode[[]api.Game](w)
			So(len(games), ShouldEqual, 1)
			So(games[0].ID, ShouldEqual, "tic-tac-toe")
		})
	})
}

func TestSessions(t *testing.T) {
	Convey("Given the session endpoints", t, func() {
		f := newFixture()

		Convey("Creating a session returns 201 with its view", func() {
			w := f.do(http.MethodPost, "/sessions", `{"gameId":"tic-tac-toe"}`, false)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Header().Get("Location"), ShouldEqual, "/sessions/s-1")
			v := decode[service.SessionView](w)
			So(v.GameID, ShouldEqual, "tic-tac-toe")
			So(v.Submission.Status, ShouldEqual, service.SubmissionNone)
		})

		Convey("Unknown and unplayable games are rejected", func() {
			w := f.do(http.MethodPost, "/sessions", `{"gameId":"pong"}`, false)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode[httpx.ErrorResponse](w).Code, ShouldEqual, "unknown_game")

			w = f.do(http.MethodPost, "/sessions", `{"gameId":"memory-match"}`, false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[httpx.ErrorResponse](w).Code, ShouldEqual, "not_playable")
		})

		Convey("Malformed bodies are bad requests", func() {
			So(f.do(http.MethodPost, "/sessions", `{"gameId":`, false).Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodPost, "/sessions", `{"game":"x"}`, false).Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodPost, "/sessions", `{"gameId":"  "}`, false).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Lifecycle routes return the session view", func() {
			So(f.do(http.MethodGet, "/sessions/abc", "", false).Code, ShouldEqual, http.StatusOK)
			So(f.do(http.MethodPost, "/sessions/abc/start", "", false).Code, ShouldEqual, http.StatusOK)
			So(f.do(http.MethodPost, "/sessions/abc/reset", "", false).Code, ShouldEqual, http.StatusOK)
		})

		Convey("Input is decoded into an engine event", func() {
			f.hub.applied = true
			w := f.do(http.MethodPost, "/sessions/abc/input", `{"kind":"cell","cell":4}`, false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(f.hub.lastEvent, ShouldResemble, engine.Cell(4))
			resp := decode[api.InputResponse](w)
			So(resp.Applied, ShouldBeTrue)
			So(resp.Session.ID, ShouldEqual, "abc")
		})

		Convey("Unknown input kinds are rejected", func() {
			w := f.do(http.MethodPost, "/sessions/abc/input", `{"kind":"jump"}`, false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Missing sessions are 404", func() {
			f.hub.sessionErr = fmt.Errorf("%w: abc", service.ErrSessionNotFound)
			w := f.do(http.MethodGet, "/sessions/abc", "", false)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode[httpx.ErrorResponse](w).Code, ShouldEqual, "session_not_found")
			So(f.do(http.MethodDelete, "/sessions/abc", "", false).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Closing a session answers 204", func() {
			w := f.do(http.MethodDelete, "/sessions/abc", "", false)
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(f.hub.closed, ShouldResemble, []string{"abc"})
		})

		Convey("An invalid token is rejected even on public routes", func() {
			req := httptest.NewRequest(http.MethodGet, "/games", http.NoBody)
			req.Header.Set("Authorization", "Bearer nope")
			w := httptest.NewRecorder()
			f.handler.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(w.Header().Get("WWW-Authenticate"), ShouldContainSubstring, "Bearer")
		})
	})
}

func TestSubmit(t *testing.T) {
	Convey("Given a finished session", t, func() {
		f := newFixture(api.WithSubmitWait(50 * time.Millisecond))

		Convey("A successful submission reports the accepted score", func() {
			f.hub.result = &submission.Result{GameID: "tic-tac-toe", Score: 100}
			w := f.do(http.MethodPost, "/sessions/abc/submit", "", true)
			So(w.Code, ShouldEqual, http.StatusOK)
			resp := decode[api.SubmitResponse](w)
			So(resp.Status, ShouldEqual, service.SubmissionAccepted)
			So(*resp.Score, ShouldEqual, 100)
			So(resp.Message, ShouldEqual, submission.MessageSuccess)
			So(f.hub.principal, ShouldEqual, "alice")
		})

		Convey("A rejected submission carries the player-facing message", func() {
			f.hub.result = &submission.Result{Err: fmt.Errorf("%w: 401", submission.ErrUnauthenticated)}
			w := f.do(http.MethodPost, "/sessions/abc/submit", "", false)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decode[httpx.ErrorResponse](w).Message, ShouldEqual, submission.MessageUnauthenticated)
		})

		Convey("A remote failure is a bad gateway", func() {
			f.hub.result = &submission.Result{Err: fmt.Errorf("%w: boom", submission.ErrRemoteFailure)}
			w := f.do(http.MethodPost, "/sessions/abc/submit", "", true)
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(decode[httpx.ErrorResponse](w).Message, ShouldEqual, submission.MessageFailure)
		})

		Convey("async=true answers 202 immediately", func() {
			w := f.do(http.MethodPost, "/sessions/abc/submit?async=true", "", true)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(decode[api.SubmitResponse](w).Status, ShouldEqual, service.SubmissionPending)
		})

		Convey("A slow scoring service yields 202 after the wait", func() {
			w := f.do(http.MethodPost, "/sessions/abc/submit", "", true)
			So(w.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("Hub refusals map to their status codes", func() {
			cases := []struct {
				err  error
				code int
				name string
			}{
				{fmt.Errorf("%w: abc", service.ErrNotTerminal), http.StatusConflict, "not_terminal"},
				{fmt.Errorf("%w: abc", service.ErrSubmissionInFlight), http.StatusConflict, "submission_in_flight"},
				{fmt.Errorf("%w: full", submission.ErrBackpressure), http.StatusServiceUnavailable, "backpressure"},
				{fmt.Errorf("%w: negative", submission.ErrInvalidSubmission), http.StatusBadRequest, "invalid_submission"},
				{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
				{errors.New("surprise"), http.StatusInternalServerError, "internal_error"},
			}
			for _, c := range cases {
				f.hub.submitErr = c.err
				w := f.do(http.MethodPost, "/sessions/abc/submit", "", true)
				So(w.Code, ShouldEqual, c.code)
				So(decode[httpx.ErrorResponse](w).Code, ShouldEqual, c.name)
			}
		})
	})
}

func TestLeaderboards(t *testing.T) {
	Convey("Given the leaderboard endpoints", t, func() {
		f := newFixture()
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		f.hub.top = []leaderboard.Entry{
			{Rank: 1, LeaderboardEntry: model.LeaderboardEntry{Player: model.Identity{Principal: "bob"}, DisplayName: "Bobby", Score: 100, SubmittedAt: now}},
			{Rank: 2, LeaderboardEntry: model.LeaderboardEntry{Player: model.Identity{Principal: "carol"}, Score: 50, SubmittedAt: now}},
		}

		Convey("Top scores keep their ranks and fall back to the principal", func() {
			w := f.do(http.MethodGet, "/leaderboards/tic-tac-toe", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			resp := decode[api.LeaderboardResponse](w)
			So(resp.GameID, ShouldEqual, "tic-tac-toe")
			So(len(resp.Entries), ShouldEqual, 2)
			So(resp.Entries[0].DisplayName, ShouldEqual, "Bobby")
			So(resp.Entries[1].DisplayName, ShouldEqual, "carol")
			So(resp.Entries[1].Rank, ShouldEqual, 2)
		})

		Convey("An empty board is an empty list", func() {
			f.hub.top = nil
			resp := decode[api.LeaderboardResponse](f.do(http.MethodGet, "/leaderboards/tic-tac-toe", "", false))
			So(resp.Entries, ShouldNotBeNil)
			So(len(resp.Entries), ShouldEqual, 0)
		})

		Convey("Remote failures are 502", func() {
			f.hub.topErr = fmt.Errorf("%w: down", leaderboard.ErrRemoteFailure)
			So(f.do(http.MethodGet, "/leaderboards/tic-tac-toe", "", false).Code, ShouldEqual, http.StatusBadGateway)
		})

		Convey("The caller's best needs a token", func() {
			So(f.do(http.MethodGet, "/leaderboards/tic-tac-toe/me", "", false).Code, ShouldEqual, http.StatusUnauthorized)

			resp := decode[api.BestResponse](f.do(http.MethodGet, "/leaderboards/tic-tac-toe/me", "", true))
			So(resp.Found, ShouldBeFalse)
			So(resp.Entry, ShouldBeNil)

			f.hub.best = &f.hub.top[0]
			resp = decode[api.BestResponse](f.do(http.MethodGet, "/leaderboards/tic-tac-toe/me", "", true))
			So(resp.Found, ShouldBeTrue)
			So(resp.Entry.Score, ShouldEqual, 100)
		})
	})
}

func TestProfile(t *testing.T) {
	Convey("Given the profile endpoints", t, func() {
		f := newFixture()

		Convey("Anonymous callers are 401", func() {
			So(f.do(http.MethodGet, "/profile", "", false).Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("A new player needs setup", func() {
			resp := decode[api.ProfileBody](f.do(http.MethodGet, "/profile", "", true))
			So(resp.NeedsSetup, ShouldBeTrue)
		})

		Convey("Saving a display name round-trips", func() {
			w := f.do(http.MethodPut, "/profile", `{"displayName":"  Ace  "}`, true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[api.ProfileBody](w).DisplayName, ShouldEqual, "Ace")

			resp := decode[api.ProfileBody](f.do(http.MethodGet, "/profile", "", true))
			So(resp.DisplayName, ShouldEqual, "Ace")
			So(resp.NeedsSetup, ShouldBeFalse)
		})

		Convey("Invalid names are 400", func() {
			f.hub.saveErr = fmt.Errorf("%w: blank", profile.ErrInvalidProfile)
			w := f.do(http.MethodPut, "/profile", `{"displayName":""}`, true)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[httpx.ErrorResponse](w).Code, ShouldEqual, "invalid_profile")
		})
	})
}
