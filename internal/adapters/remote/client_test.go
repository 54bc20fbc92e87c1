package remote_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arcadehub/internal/adapters/auth"
	"github.com/okian/arcadehub/internal/adapters/http/scoresvc"
	"github.com/okian/arcadehub/internal/adapters/remote"
	"github.com/okian/arcadehub/internal/adapters/repository"
	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFormat("text", io.Discard)
	os.Exit(m.Run())
}

func TestClientAgainstScoringService(t *testing.T) {
	Convey("Given a client for a running scoring service", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore(ctx)
		defer func() { _ = store.Close() }()
		srv := httptest.NewServer(scoresvc.NewServer(store, auth.NewAuthority("secret"), scoresvc.WithDevTokens(true)).Handler())
		defer srv.Close()
		client := remote.NewClient(srv.URL, remote.WithLimit(2))

		ada, _, err := client.IssueToken(ctx, "ada")
		So(err, ShouldBeNil)
		So(ada.Principal, ShouldEqual, "ada")

		Convey("When scores are submitted", func() {
			for _, s := range []int{25, 100, 50} {
				So(client.SubmitScore(ctx, ada, model.ScoreSubmission{GameID: "tic-tac-toe", Score: s}), ShouldBeNil)
			}

			Convey("Then the top scores come back in order and limited", func() {
				rows, err := client.TopScores(ctx, "tic-tac-toe")
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].Score, ShouldEqual, 100)
				So(rows[1].Score, ShouldEqual, 50)
				So(rows[0].DisplayName, ShouldEqual, "ada")
			})

			Convey("Then the caller's best is found", func() {
				best, found, err := client.BestScore(ctx, ada, "tic-tac-toe")
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(best.Score, ShouldEqual, 100)
			})
		})

		Convey("Then a game without scores has no best", func() {
			_, found, err := client.BestScore(ctx, ada, "reaction")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})

		Convey("Then profiles round trip and an absent one is not found", func() {
			_, found, err := client.GetProfile(ctx, ada, "ada")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
			So(client.SaveProfile(ctx, ada, model.Profile{DisplayName: "Ada"}), ShouldBeNil)
			p, found, err := client.GetProfile(ctx, ada, "ada")
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(p.DisplayName, ShouldEqual, "Ada")
		})

		Convey("Then a forged token maps to unauthenticated", func() {
			forged := model.Identity{Principal: "ada", Token: "forged"}
			err := client.SubmitScore(ctx, forged, model.ScoreSubmission{GameID: "g", Score: 1})
			So(errors.Is(err, model.ErrUnauthenticated), ShouldBeTrue)
			So(errors.Is(err, model.ErrRemoteFailure), ShouldBeFalse)
		})

		Convey("Then a rejected submission maps to a remote failure", func() {
			err := client.SubmitScore(ctx, ada, model.ScoreSubmission{GameID: "g", Score: -1})
			So(errors.Is(err, model.ErrRemoteFailure), ShouldBeTrue)
		})
	})
}

func TestClientFailures(t *testing.T) {
	Convey("Given a service that always fails", t, func() {
		ctx := context.Background()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		client := remote.NewClient(srv.URL)

		Convey("Then reads and writes fail with a remote failure", func() {
			_, err := client.TopScores(ctx, "g")
			So(errors.Is(err, model.ErrRemoteFailure), ShouldBeTrue)
			err = client.SaveProfile(ctx, model.Identity{Principal: "p", Token: "t"}, model.Profile{DisplayName: "x"})
			So(errors.Is(err, model.ErrRemoteFailure), ShouldBeTrue)
		})
	})

	Convey("Given a service that is not listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		client := remote.NewClient(url)

		Convey("Then the transport error is a remote failure", func() {
			_, err := client.TopScores(context.Background(), "g")
			So(errors.Is(err, model.ErrRemoteFailure), ShouldBeTrue)
		})
	})

	Convey("Given a service returning malformed JSON", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		Convey("Then decoding fails as a remote failure", func() {
			_, err := remote.NewClient(srv.URL).TopScores(context.Background(), "g")
			So(errors.Is(err, model.ErrRemoteFailure), ShouldBeTrue)
		})
	})
}
