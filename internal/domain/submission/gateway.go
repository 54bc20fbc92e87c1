// Package submission is the single path by which a finished game's score
// reaches the scoring service.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
)

const defaultTimeout = 5 * time.Second

// IdentityProvider reports who is calling.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (model.Identity, bool)
}

// ScoreService accepts scores on behalf of an identity.
type ScoreService interface {
	SubmitScore(ctx context.Context, id model.Identity, s model.ScoreSubmission) error
}

// Invalidator drops cached views for a game.
type Invalidator interface {
	Invalidate(gameID string)
}

// Dispatcher runs a job in the background with its own context. Once Dispatch
// accepts a job exactly one of run or drop is called.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, run func(ctx context.Context), drop func(err error)) error
}

// Result is the settled outcome of SubmitAsync.
type Result struct {
	GameID string
	Score  int
	Err    error
}

// Message returns the player-facing text for the result.
func (r Result) Message() string { return Message(r.Err) }

// Gateway sends scores and keeps leaderboard views consistent with them.
type Gateway struct {
	identity     IdentityProvider
	service      ScoreService
	invalidators []Invalidator
	dispatcher   Dispatcher
	timeout      time.Duration
	logger       logger.Logger
	tracer       trace.Tracer
}

// NewGateway returns a Gateway over service.
func NewGateway(identity IdentityProvider, service ScoreService, opts ...Option) *Gateway {
	g := &Gateway{
		identity: identity,
		service:  service,
		timeout:  defaultTimeout,
		logger:   logger.Get().Named("submission"),
		tracer:   otel.Tracer("github.com/okian/arcadehub/internal/domain/submission"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddInvalidator registers another view to drop after success.
func (g *Gateway) AddInvalidator(inv Invalidator) {
	g.invalidators = append(g.invalidators, inv)
}

// Submit sends score for gameID on behalf of the caller in ctx. It never retries.
func (g *Gateway) Submit(ctx context.Context, gameID string, score int) error {
	id, err := g.precheck(ctx, gameID, score)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.send(ctx, id, model.ScoreSubmission{GameID: gameID, Score: score})
}

// SubmitAsync resolves identity and arguments now and performs the remote call
// in the background. The call is not cancelled when ctx is. The returned
// channel yields exactly one Result and is then closed.
func (g *Gateway) SubmitAsync(ctx context.Context, gameID string, score int) <-chan Result {
	out := make(chan Result, 1)
	settle := func(err error) {
		out <- Result{GameID: gameID, Score: score, Err: err}
		close(out)
	}

	id, err := g.precheck(ctx, gameID, score)
	if err != nil {
		settle(err)
		return out
	}
	sub := model.ScoreSubmission{GameID: gameID, Score: score}
	run := func(jobCtx context.Context) {
		jobCtx, cancel := context.WithTimeout(jobCtx, g.timeout)
		defer cancel()
		settle(g.send(jobCtx, id, sub))
	}

	if g.dispatcher == nil {
		go run(context.WithoutCancel(ctx))
		return out
	}
	drop := func(err error) {
		metrics.RecordSubmission(gameID, "dropped")
		g.logger.Error(ctx, "submission dropped before it was sent",
			logger.String("game", gameID), logger.Int("score", score), logger.Error(err))
		settle(fmt.Errorf("submit %s: %w: %v", gameID, ErrRemoteFailure, err))
	}
	if err := g.dispatcher.Dispatch(ctx, "submit:"+gameID, run, drop); err != nil {
		metrics.RecordSubmission(gameID, "backpressure")
		g.logger.Warn(ctx, "submission not dispatched",
			logger.String("game", gameID), logger.Int("score", score), logger.Error(err))
		settle(fmt.Errorf("%w: %v", ErrBackpressure, err))
	}
	return out
}

func (g *Gateway) precheck(ctx context.Context, gameID string, score int) (model.Identity, error) {
	id, ok := g.identity.CurrentIdentity(ctx)
	if !ok || id.Anonymous() {
		metrics.RecordSubmission(gameID, "unauthenticated")
		return model.Identity{}, fmt.Errorf("submit %s: %w", gameID, ErrUnauthenticated)
	}
	if gameID == "" || score < 0 {
		metrics.RecordSubmission(gameID, "invalid")
		return model.Identity{}, fmt.Errorf("%w: game %q score %d", ErrInvalidSubmission, gameID, score)
	}
	return id, nil
}

func (g *Gateway) send(ctx context.Context, id model.Identity, sub model.ScoreSubmission) error {
	ctx, span := g.tracer.Start(ctx, "submission.Submit", trace.WithAttributes(
		attribute.String("game.id", sub.GameID),
		attribute.Int("game.score", sub.Score),
	))
	defer span.End()

	metrics.AddSubmissionsInFlight(1)
	start := time.Now()
	err := g.service.SubmitScore(ctx, id, sub)
	took := time.Since(start)
	metrics.AddSubmissionsInFlight(-1)
	metrics.RecordSubmissionLatency(sub.GameID, took)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		if errors.Is(err, ErrUnauthenticated) {
			metrics.RecordSubmission(sub.GameID, "unauthenticated")
			g.logger.Warn(ctx, "score rejected: unauthenticated",
				logger.String("game", sub.GameID), logger.String("principal", id.Principal))
			return fmt.Errorf("submit %s: %w", sub.GameID, err)
		}
		metrics.RecordSubmission(sub.GameID, "remote_failure")
		g.logger.Error(ctx, "score submission failed",
			logger.String("game", sub.GameID), logger.Int("score", sub.Score),
			logger.Duration("took", took), logger.Error(err))
		if errors.Is(err, ErrRemoteFailure) {
			return fmt.Errorf("submit %s: %w", sub.GameID, err)
		}
		return fmt.Errorf("submit %s: %w: %v", sub.GameID, ErrRemoteFailure, err)
	}

	for _, inv := range g.invalidators {
		inv.Invalidate(sub.GameID)
	}
	metrics.RecordSubmission(sub.GameID, "success")
	g.logger.Info(ctx, "score submitted",
		logger.String("game", sub.GameID), logger.Int("score", sub.Score),
		logger.String("principal", id.Principal), logger.Duration("took", took))
	return nil
}
