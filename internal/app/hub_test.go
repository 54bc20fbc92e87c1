package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/arcadehub/internal/app"
	"github.com/okian/arcadehub/internal/domain/catalog"
	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/internal/domain/scramble"
	"github.com/okian/arcadehub/internal/domain/submission"
	"github.com/okian/arcadehub/internal/domain/timer"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFormat("text", io.Discard)
	os.Exit(m.Run())
}

type fixedIdentity struct {
	id model.Identity
	ok bool
}

func (f fixedIdentity) CurrentIdentity(context.Context) (model.Identity, bool) { return f.id, f.ok }

// fakeBackend stores scores in memory. When gate is set, SubmitScore blocks on it.
type fakeBackend struct {
	mu       sync.Mutex
	scores   []model.ScoreSubmission
	profiles map[string]model.Profile
	topCalls int
	gate     chan struct{}
	err      error
}

func newBackend() *fakeBackend {
	return &fakeBackend{profiles: make(map[string]model.Profile)}
}

func (b *fakeBackend) SubmitScore(_ context.Context, _ model.Identity, s model.ScoreSubmission) error {
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.scores = append(b.scores, s)
	return nil
}

func (b *fakeBackend) TopScores(_ context.Context, gameID string) ([]model.LeaderboardEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topCalls++
	var out []model.LeaderboardEntry
	for _, s := range b.scores {
		if s.GameID == gameID {
			out = append(out, model.LeaderboardEntry{GameID: gameID, Score: s.Score, DisplayName: "player"})
		}
	}
	return out, nil
}

func (b *fakeBackend) BestScore(_ context.Context, id model.Identity, gameID string) (model.LeaderboardEntry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	best, found := model.LeaderboardEntry{}, false
	for _, s := range b.scores {
		if s.GameID == gameID && (!found || s.Score > best.Score) {
			best, found = model.LeaderboardEntry{Player: id, GameID: gameID, Score: s.Score}, true
		}
	}
	return best, found, nil
}

func (b *fakeBackend) GetProfile(_ context.Context, _ model.Identity, principal string) (model.Profile, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[principal]
	return p, ok, nil
}

func (b *fakeBackend) SaveProfile(_ context.Context, id model.Identity, p model.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[id.Principal] = p
	return nil
}

func (b *fakeBackend) submitted() []model.ScoreSubmission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.ScoreSubmission(nil), b.scores...)
}

type fixedPuzzles struct{}

func (fixedPuzzles) Next() scramble.Puzzle {
	return scramble.Puzzle{Answer: "COMPUTER", Letters: "PMOCUTER", Hint: "Electronic device"}
}

var player = model.Identity{Principal: "player-1", Token: "tok"}

func newHub(backend *fakeBackend, clock *timer.Manual, identity fixedIdentity, extra ...service.Option) *service.Hub {
	reg := catalog.Default(
		catalog.WithScheduler(clock),
		catalog.WithReactionDelays(100*time.Millisecond, 100*time.Millisecond+1),
		catalog.WithWordPuzzleSeconds(60),
		catalog.WithPuzzles(fixedPuzzles{}),
	)
	opts := []service.Option{
		service.WithCatalog(reg),
		service.WithClock(clock),
		service.WithIdentity(identity),
		service.WithWorkerCount(2),
		service.WithQueueSize(8),
		service.WithSubmitTimeout(time.Second),
		service.WithSessionIdle(time.Minute),
	}
	return service.New(backend, append(opts, extra...)...)
}

// eventually polls cond for up to two seconds.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func finishedBoard(ctx context.Context, h *service.Hub) string {
	sess, err := h.CreateSession(ctx, "tic-tac-toe")
	So(err, ShouldBeNil)
	_, err = h.StartSession(ctx, sess.ID)
	So(err, ShouldBeNil)
	v := play(ctx, h, sess.ID, engine.Cell(0), engine.Cell(1), engine.Cell(3), engine.Cell(4), engine.Cell(6))
	So(v.Snapshot.Terminal, ShouldBeTrue)
	return sess.ID
}

func settle(ch <-chan submission.Result) submission.Result {
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		panic("submission did not settle")
	}
}

func play(ctx context.Context, h *service.Hub, id string, events ...engine.Event) service.SessionView {
	var v service.SessionView
	for _, ev := range events {
		v, _, _ = h.ApplyInput(ctx, id, ev)
	}
	return v
}

func TestHubTicTacToe(t *testing.T) {
	Convey("Given a started hub and an authenticated player", t, func() {
		ctx := context.Background()
		backend := newBackend()
		clock := timer.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		h := newHub(backend, clock, fixedIdentity{id: player, ok: true})
		So(h.Start(ctx), ShouldBeNil)
		defer h.Stop(ctx)

		sess, err := h.CreateSession(ctx, "tic-tac-toe")
		So(err, ShouldBeNil)
		_, err = h.StartSession(ctx, sess.ID)
		So(err, ShouldBeNil)

		Convey("When X wins with moves 0,1,3,4,6", func() {
			v := play(ctx, h, sess.ID, engine.Cell(0), engine.Cell(1), engine.Cell(3), engine.Cell(4), engine.Cell(6))
			So(v.Snapshot.Terminal, ShouldBeTrue)
			So(*v.Snapshot.Score, ShouldEqual, 100)

			Convey("Then the score is submitted and the session records acceptance", func() {
				_, _ = h.TopScores(ctx, "tic-tac-toe")
				ch, err := h.SubmitSession(ctx, sess.ID)
				So(err, ShouldBeNil)
				r := settle(ch)
				So(r.Err, ShouldBeNil)
				So(r.Message(), ShouldEqual, submission.MessageSuccess)
				So(backend.submitted(), ShouldResemble, []model.ScoreSubmission{{GameID: "tic-tac-toe", Score: 100}})

				view, err := h.Session(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(view.Submission.Status, ShouldEqual, service.SubmissionAccepted)
				So(*view.Submission.Score, ShouldEqual, 100)

				rows, err := h.TopScores(ctx, "tic-tac-toe")
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(backend.topCalls, ShouldEqual, 2)
			})
		})

		Convey("Then input on an occupied cell is not applied", func() {
			_, applied, err := h.ApplyInput(ctx, sess.ID, engine.Cell(4))
			So(err, ShouldBeNil)
			So(applied, ShouldBeTrue)
			_, applied, err = h.ApplyInput(ctx, sess.ID, engine.Cell(4))
			So(err, ShouldBeNil)
			So(applied, ShouldBeFalse)
		})

		Convey("Then an unfinished game cannot be submitted", func() {
			_, err := h.SubmitSession(ctx, sess.ID)
			So(errors.Is(err, service.ErrNotTerminal), ShouldBeTrue)
		})

		Convey("When a submission is already in flight", func() {
			backend.gate = make(chan struct{})
			play(ctx, h, sess.ID, engine.Cell(0), engine.Cell(1), engine.Cell(3), engine.Cell(4), engine.Cell(6))
			first, err := h.SubmitSession(ctx, sess.ID)
			So(err, ShouldBeNil)

			_, err = h.SubmitSession(ctx, sess.ID)

			Convey("Then a second submission is refused until the first settles", func() {
				So(errors.Is(err, service.ErrSubmissionInFlight), ShouldBeTrue)
				view, _ := h.Session(ctx, sess.ID)
				So(view.Submission.Status, ShouldEqual, service.SubmissionPending)

				close(backend.gate)
				So(settle(first).Err, ShouldBeNil)
				again, err := h.SubmitSession(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(settle(again).Err, ShouldBeNil)
				So(backend.submitted(), ShouldHaveLength, 2)
			})
		})

		Convey("When the session is closed", func() {
			So(h.CloseSession(ctx, sess.ID), ShouldBeNil)

			Convey("Then it is gone", func() {
				_, err := h.Session(ctx, sess.ID)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				So(errors.Is(h.CloseSession(ctx, sess.ID), service.ErrSessionNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestHubAnonymousSubmit(t *testing.T) {
	Convey("Given an anonymous caller with a finished game", t, func() {
		ctx := context.Background()
		backend := newBackend()
		clock := timer.NewManual(time.Now())
		h := newHub(backend, clock, fixedIdentity{})
		So(h.Start(ctx), ShouldBeNil)
		defer h.Stop(ctx)

		sess, _ := h.CreateSession(ctx, "tic-tac-toe")
		play(ctx, h, sess.ID, engine.Cell(0), engine.Cell(1), engine.Cell(3), engine.Cell(4), engine.Cell(6))

		Convey("Then the submission fails as unauthenticated without reaching the service", func() {
			ch, err := h.SubmitSession(ctx, sess.ID)
			So(err, ShouldBeNil)
			r := settle(ch)
			So(errors.Is(r.Err, submission.ErrUnauthenticated), ShouldBeTrue)
			So(r.Message(), ShouldEqual, submission.MessageUnauthenticated)
			So(backend.submitted(), ShouldBeEmpty)

			view, _ := h.Session(ctx, sess.ID)
			So(view.Submission.Status, ShouldEqual, service.SubmissionFailed)
			So(view.Submission.Code, ShouldEqual, "unauthenticated")
		})

		Convey("Then the caller's best and profile are unavailable", func() {
			_, _, err := h.CallerBest(ctx, "tic-tac-toe")
			So(errors.Is(err, model.ErrUnauthenticated), ShouldBeTrue)
			_, _, err = h.Profile(ctx)
			So(errors.Is(err, model.ErrUnauthenticated), ShouldBeTrue)
		})
	})
}

func TestHubTimedGames(t *testing.T) {
	Convey("Given a hub driven by a manual clock", t, func() {
		ctx := context.Background()
		backend := newBackend()
		clock := timer.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		h := newHub(backend, clock, fixedIdentity{id: player, ok: true})
		So(h.Start(ctx), ShouldBeNil)
		defer h.Stop(ctx)

		Convey("When a reaction is measured at 250ms", func() {
			sess, err := h.CreateSession(ctx, "reaction-timer")
			So(err, ShouldBeNil)
			_, _ = h.StartSession(ctx, sess.ID)
			clock.Advance(100 * time.Millisecond)
			clock.Advance(250 * time.Millisecond)
			v, applied, err := h.ApplyInput(ctx, sess.ID, engine.Click())

			Convey("Then the score is 40 and can be submitted", func() {
				So(err, ShouldBeNil)
				So(applied, ShouldBeTrue)
				So(v.Snapshot.Terminal, ShouldBeTrue)
				So(*v.Snapshot.Score, ShouldEqual, 40)
				ch, err := h.SubmitSession(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(settle(ch).Err, ShouldBeNil)
				So(backend.submitted()[0].Score, ShouldEqual, 40)
			})
		})

		Convey("When the word puzzle is solved after one wrong answer and time runs out", func() {
			sess, _ := h.CreateSession(ctx, "word-scramble")
			_, _ = h.StartSession(ctx, sess.ID)
			play(ctx, h, sess.ID, engine.Answer("KEYBOARD"), engine.Answer("computer"))
			clock.Advance(60 * time.Second)

			Convey("Then the final score is 45", func() {
				v, err := h.Session(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(v.Snapshot.Terminal, ShouldBeTrue)
				So(*v.Snapshot.Score, ShouldEqual, 45)
			})
		})
	})
}

func TestHubCatalogAndSweep(t *testing.T) {
	Convey("Given a started hub", t, func() {
		ctx := context.Background()
		backend := newBackend()
		clock := timer.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		h := newHub(backend, clock, fixedIdentity{id: player, ok: true})
		So(h.Start(ctx), ShouldBeNil)
		defer h.Stop(ctx)

		Convey("Then unknown and unplayable games are refused", func() {
			_, err := h.CreateSession(ctx, "pong")
			So(errors.Is(err, catalog.ErrUnknownGame), ShouldBeTrue)
			_, err = h.CreateSession(ctx, "chess-master")
			So(errors.Is(err, catalog.ErrNotPlayable), ShouldBeTrue)
			_, err = h.TopScores(ctx, "pong")
			So(errors.Is(err, catalog.ErrUnknownGame), ShouldBeTrue)
		})

		Convey("Then the catalog lists every game", func() {
			So(len(h.Games()), ShouldEqual, 10)
		})

		Convey("When sessions go idle", func() {
			old, _ := h.CreateSession(ctx, "tic-tac-toe")
			clock.Advance(45 * time.Second)
			fresh, _ := h.CreateSession(ctx, "tic-tac-toe")
			clock.Advance(30 * time.Second)

			Convey("Then only the stale one is swept", func() {
				So(h.Sweep(ctx), ShouldEqual, 1)
				_, err := h.Session(ctx, old.ID)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				_, err = h.Session(ctx, fresh.ID)
				So(err, ShouldBeNil)
				So(h.SessionIDs(), ShouldResemble, []string{fresh.ID})
			})
		})

		Convey("Then profile setup round trips", func() {
			_, found, err := h.Profile(ctx)
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
			So(h.SaveProfile(ctx, " Ada "), ShouldBeNil)
			p, found, err := h.Profile(ctx)
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(p.DisplayName, ShouldEqual, "Ada")
		})

		Convey("Then stats report open sessions", func() {
			_, _ = h.CreateSession(ctx, "tic-tac-toe")
			stats := h.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["sessions"], ShouldEqual, 1)
		})
	})

	Convey("A hub that was never started refuses work", t, func() {
		h := service.New(newBackend())
		_, err := h.CreateSession(context.Background(), "tic-tac-toe")
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})
}

func TestHubLifecycle(t *testing.T) {
	Convey("Given a hub whose start context is cancelled with submissions queued", t, func() {
		backend := newBackend()
		backend.gate = make(chan struct{})
		clock := timer.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		h := newHub(backend, clock, fixedIdentity{id: player, ok: true})
		startCtx, cancel := context.WithCancel(context.Background())
		So(h.Start(startCtx), ShouldBeNil)
		defer h.Stop(context.Background())

		ctx := context.Background()
		var ids []string
		var results []<-chan submission.Result
		for i := 0; i < 3; i++ {
			id := finishedBoard(ctx, h)
			ch, err := h.SubmitSession(ctx, id)
			So(err, ShouldBeNil)
			ids = append(ids, id)
			results = append(results, ch)
		}

		cancel()
		close(backend.gate)

		Convey("Then every submission still settles and no session stays pending", func() {
			for _, ch := range results {
				So(settle(ch).Err, ShouldBeNil)
			}
			So(backend.submitted(), ShouldHaveLength, 3)
			for _, id := range ids {
				view, err := h.Session(ctx, id)
				So(err, ShouldBeNil)
				So(view.Submission.Status, ShouldEqual, service.SubmissionAccepted)
			}
		})
	})

	Convey("Given a hub that stops while submissions are queued", t, func() {
		backend := newBackend()
		backend.gate = make(chan struct{})
		clock := timer.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		h := newHub(backend, clock, fixedIdentity{id: player, ok: true}, service.WithWorkerCount(1))
		ctx := context.Background()
		So(h.Start(ctx), ShouldBeNil)

		var results []<-chan submission.Result
		for i := 0; i < 3; i++ {
			ch, err := h.SubmitSession(ctx, finishedBoard(ctx, h))
			So(err, ShouldBeNil)
			results = append(results, ch)
		}

		go func() {
			time.Sleep(20 * time.Millisecond)
			close(backend.gate)
		}()
		h.Stop(ctx)

		Convey("Then stopping drains every queued submission", func() {
			for _, ch := range results {
				So(settle(ch).Err, ShouldBeNil)
			}
			So(backend.submitted(), ShouldHaveLength, 3)
		})
	})

	Convey("Given one submission waiting on the scoring service", t, func() {
		backend := newBackend()
		backend.gate = make(chan struct{})
		clock := timer.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		h := newHub(backend, clock, fixedIdentity{id: player, ok: true})
		ctx := context.Background()
		So(h.Start(ctx), ShouldBeNil)
		defer h.Stop(ctx)

		inFlight := func() float64 {
			v, err := metrics.Value("arcade_hub_submissions_in_flight", nil)
			So(err, ShouldBeNil)
			return v
		}
		before := inFlight()
		ch, err := h.SubmitSession(ctx, finishedBoard(ctx, h))
		So(err, ShouldBeNil)

		Convey("Then the in-flight gauge counts it once", func() {
			So(eventually(func() bool { return inFlight() == before+1 }), ShouldBeTrue)
			time.Sleep(20 * time.Millisecond)
			So(inFlight(), ShouldEqual, before+1)

			close(backend.gate)
			So(settle(ch).Err, ShouldBeNil)
			So(inFlight(), ShouldEqual, before)
		})
	})

	Convey("Given a hub that was stopped and started again", t, func() {
		backend := newBackend()
		clock := timer.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
		h := newHub(backend, clock, fixedIdentity{id: player, ok: true},
			service.WithSweepInterval(10*time.Millisecond))
		ctx := context.Background()
		So(h.Start(ctx), ShouldBeNil)
		h.Stop(ctx)
		So(h.Start(ctx), ShouldBeNil)
		defer h.Stop(ctx)

		_, err := h.CreateSession(ctx, "tic-tac-toe")
		So(err, ShouldBeNil)

		Convey("When the session goes idle", func() {
			clock.Advance(2 * time.Minute)

			Convey("Then the background sweeper still evicts it", func() {
				So(eventually(func() bool { return len(h.SessionIDs()) == 0 }), ShouldBeTrue)
			})
		})
	})
}
