// Package service is the game hub: it owns play sessions, routes input to
// their engines and submits finished scores through the submission gateway.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arcadehub/internal/adapters/auth"
	"github.com/okian/arcadehub/internal/adapters/mq/queue"
	"github.com/okian/arcadehub/internal/adapters/mq/worker"
	"github.com/okian/arcadehub/internal/domain/catalog"
	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/inflight"
	"github.com/okian/arcadehub/internal/domain/leaderboard"
	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/internal/domain/profile"
	"github.com/okian/arcadehub/internal/domain/submission"
	"github.com/okian/arcadehub/internal/domain/timer"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
)

// IdentityProvider reports who is calling.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (model.Identity, bool)
}

// Backend is the scoring service as seen by the hub.
type Backend interface {
	submission.ScoreService
	leaderboard.Source
	profile.Source
}

// Hub implements the API dependencies for the game hub.
type Hub struct {
	mu sync.RWMutex

	// Collaborators
	backend  Backend
	identity IdentityProvider
	catalog  *catalog.Registry
	clock    timer.Clock

	// Built by Start
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	guard    inflight.Guard
	gateway  *submission.Gateway
	board    *leaderboard.ViewModel
	profiles *profile.ViewModel

	// Configuration
	workerCount      int
	queueSize        int
	submitTimeout    time.Duration
	leaderboardLimit int
	sessionIdle      time.Duration
	sweepInterval    time.Duration

	sessions map[string]*session

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Hub over backend with default configuration.
func New(backend Backend, opts ...Option) *Hub {
	h := &Hub{
		backend:          backend,
		identity:         auth.ContextProvider{},
		clock:            timer.System(),
		workerCount:      runtime.NumCPU() * 2,
		queueSize:        1024,
		submitTimeout:    5 * time.Second,
		leaderboardLimit: leaderboard.DefaultLimit,
		sessionIdle:      30 * time.Minute,
		sweepInterval:    time.Minute,
		sessions:         make(map[string]*session),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.catalog == nil {
		h.catalog = catalog.Default(catalog.WithTimerObserver(metrics.RecordTimerCallback))
	}
	return h
}

// Start builds the submission pipeline and starts workers and the idle sweeper.
// Cancelling ctx stops the sweeper only; queued submissions keep running until
// Stop drains them. A stopped hub may be started again.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("hub")
	}
	h.queue = queue.NewInMemoryQueue(queue.WithCapacity(h.queueSize))
	h.pool = worker.NewPool(h.workerCount, h.queue, worker.WithJobTimeout(h.submitTimeout+time.Second))
	h.pool.Start(ctx)
	h.guard = inflight.NewInMemoryGuard()

	h.board = leaderboard.New(h.identity, h.backend, leaderboard.WithLimit(h.leaderboardLimit))
	h.profiles = profile.New(h.identity, h.backend)
	h.gateway = submission.NewGateway(h.identity, h.backend,
		submission.WithTimeout(h.submitTimeout),
		submission.WithDispatcher(h.queue),
		submission.WithInvalidators(h.board),
	)

	h.stopCh = make(chan struct{})
	h.wg.Add(1)
	go h.sweepLoop(ctx, h.stopCh)

	h.started = true
	h.logger.Info(ctx, "hub started",
		logger.Int("workers", h.pool.Size()),
		logger.Int("queueSize", h.queueSize),
		logger.Duration("sessionIdle", h.sessionIdle),
	)
	return nil
}

// Stop closes every session and drains the submission workers.
func (h *Hub) Stop(ctx context.Context) {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	close(h.stopCh)
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	h.wg.Wait()
	for _, s := range sessions {
		s.engine.Close()
	}
	metrics.UpdateSessionsActive(0)
	if err := h.pool.Shutdown(ctx); err != nil {
		h.logger.Warn(ctx, "worker shutdown incomplete", logger.Error(err))
	}
	h.logger.Info(ctx, "hub stopped", logger.Int("closedSessions", len(sessions)))
}

// Games lists the catalog.
func (h *Hub) Games() []model.GameInfo {
	return h.catalog.List()
}

// CreateSession opens a session for a playable game. The engine starts idle.
func (h *Hub) CreateSession(ctx context.Context, gameID string) (SessionView, error) {
	if err := h.ready(); err != nil {
		return SessionView{}, err
	}
	eng, err := h.catalog.New(gameID)
	if err != nil {
		return SessionView{}, err
	}
	now := h.clock.Now()
	s := &session{
		id:         uuid.NewString(),
		gameID:     gameID,
		engine:     eng,
		created:    now,
		lastActive: now,
		submission: SubmissionView{Status: SubmissionNone},
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	n := len(h.sessions)
	h.mu.Unlock()

	metrics.RecordSessionStarted(gameID)
	metrics.UpdateSessionsActive(n)
	h.logger.Debug(ctx, "session created", logger.String("session", s.id), logger.String("game", gameID))
	return s.view(), nil
}

// Session returns the current view of a session.
func (h *Hub) Session(ctx context.Context, id string) (SessionView, error) {
	s, err := h.get(id)
	if err != nil {
		return SessionView{}, err
	}
	v := s.view()
	h.observe(s, v.Snapshot)
	return v, nil
}

// StartSession (re)starts the game.
func (h *Hub) StartSession(ctx context.Context, id string) (SessionView, error) {
	return h.mutate(id, func(e engine.Engine) { e.Start() })
}

// ResetSession returns the game to its initial state.
func (h *Hub) ResetSession(ctx context.Context, id string) (SessionView, error) {
	return h.mutate(id, func(e engine.Engine) { e.Reset() })
}

// ApplyInput feeds one event. applied is false when the engine ignored it.
func (h *Hub) ApplyInput(ctx context.Context, id string, ev engine.Event) (SessionView, bool, error) {
	s, err := h.get(id)
	if err != nil {
		return SessionView{}, false, err
	}
	before := s.engine.Snapshot().Version
	s.engine.Apply(ev)
	s.touch(h.clock.Now())
	v := s.view()
	applied := v.Snapshot.Version != before
	metrics.RecordEngineInput(s.gameID, applied)
	h.observe(s, v.Snapshot)
	return v, applied, nil
}

// CloseSession cancels the session's timers and forgets it. An issued
// submission still completes.
func (h *Hub) CloseSession(ctx context.Context, id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	n := len(h.sessions)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.engine.Close()
	metrics.UpdateSessionsActive(n)
	return nil
}

// SubmitSession sends the final score of a finished session for the caller
// in ctx. The returned channel yields the settled result once; the session
// records it too, so the outcome is visible even if nobody reads the channel.
func (h *Hub) SubmitSession(ctx context.Context, id string) (<-chan submission.Result, error) {
	s, err := h.get(id)
	if err != nil {
		return nil, err
	}
	score, ok := s.engine.Score()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTerminal, id)
	}
	h.mu.RLock()
	guard, gateway := h.guard, h.gateway
	h.mu.RUnlock()
	if err := guard.TryAcquire(ctx, id); err != nil {
		if errors.Is(err, inflight.ErrHeld) {
			return nil, fmt.Errorf("%w: %s", ErrSubmissionInFlight, id)
		}
		return nil, fmt.Errorf("%w: %v", submission.ErrBackpressure, err)
	}
	s.touch(h.clock.Now())
	s.setSubmission(SubmissionView{Status: SubmissionPending, Score: &score})

	res := gateway.SubmitAsync(ctx, s.gameID, score)
	out := make(chan submission.Result, 1)
	go func() {
		r := <-res
		v := SubmissionView{Status: SubmissionAccepted, Score: &score, Message: r.Message()}
		if r.Err != nil {
			v.Status = SubmissionFailed
			v.Code = ErrorCode(r.Err)
		}
		s.setSubmission(v)
		guard.Release(context.WithoutCancel(ctx), id)
		out <- r
		close(out)
	}()
	return out, nil
}

// TopScores returns the leaderboard of a catalog game.
func (h *Hub) TopScores(ctx context.Context, gameID string) ([]leaderboard.Entry, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	if _, err := h.catalog.Get(gameID); err != nil {
		return nil, err
	}
	return h.board.TopScores(ctx, gameID)
}

// CallerBest returns the caller's best score for a catalog game.
func (h *Hub) CallerBest(ctx context.Context, gameID string) (leaderboard.Entry, bool, error) {
	if err := h.ready(); err != nil {
		return leaderboard.Entry{}, false, err
	}
	if _, err := h.catalog.Get(gameID); err != nil {
		return leaderboard.Entry{}, false, err
	}
	return h.board.CallerBestScore(ctx, gameID)
}

// Profile returns the caller's profile. found is false until one is saved.
func (h *Hub) Profile(ctx context.Context) (model.Profile, bool, error) {
	if err := h.ready(); err != nil {
		return model.Profile{}, false, err
	}
	return h.profiles.Get(ctx)
}

// SaveProfile stores the caller's display name.
func (h *Hub) SaveProfile(ctx context.Context, displayName string) error {
	if err := h.ready(); err != nil {
		return err
	}
	return h.profiles.Save(ctx, displayName)
}

// Sweep closes sessions idle for longer than the configured limit and
// returns how many were closed.
func (h *Hub) Sweep(ctx context.Context) int {
	cutoff := h.clock.Now().Add(-h.sessionIdle)
	var stale []*session

	h.mu.Lock()
	for id, s := range h.sessions {
		if s.idleSince().Before(cutoff) && (h.guard == nil || !h.guard.Held(id)) {
			stale = append(stale, s)
			delete(h.sessions, id)
		}
	}
	n := len(h.sessions)
	h.mu.Unlock()

	for _, s := range stale {
		s.engine.Close()
		metrics.RecordSessionEvicted()
		h.logger.Debug(ctx, "session evicted", logger.String("session", s.id), logger.String("game", s.gameID))
	}
	if len(stale) > 0 {
		metrics.UpdateSessionsActive(n)
	}
	return len(stale)
}

// GetStats returns hub statistics for monitoring.
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ctx := context.Background()
	perGame := make(map[string]int)
	for _, s := range h.sessions {
		perGame[s.gameID]++
	}
	stats := map[string]interface{}{
		"started":          h.started,
		"workerCount":      h.workerCount,
		"queueSize":        h.queueSize,
		"sessions":         len(h.sessions),
		"sessionsByGame":   perGame,
		"sessionIdleLimit": h.sessionIdle.String(),
	}
	if h.queue != nil {
		queueLen := h.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["submissionsInFlight"] = h.guard.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

// SessionIDs returns the open session ids in lexical order.
func (h *Hub) SessionIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) sweepLoop(ctx context.Context, stop <-chan struct{}) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

func (h *Hub) mutate(id string, fn func(engine.Engine)) (SessionView, error) {
	s, err := h.get(id)
	if err != nil {
		return SessionView{}, err
	}
	fn(s.engine)
	s.touch(h.clock.Now())
	v := s.view()
	h.observe(s, v.Snapshot)
	return v, nil
}

// observe records the outcome the first time a terminal state is seen.
func (h *Hub) observe(s *session, snap engine.Snapshot) {
	if !s.firstTerminal(snap) {
		return
	}
	outcome := "scored"
	if o, ok := s.engine.(interface{ Outcome() string }); ok {
		outcome = o.Outcome()
	}
	metrics.RecordEngineOutcome(s.gameID, outcome)
	if r, ok := s.engine.(interface{ LastReaction() (time.Duration, bool) }); ok {
		if d, ok := r.LastReaction(); ok {
			metrics.RecordReactionTime(d.Milliseconds())
		}
	}
}

func (h *Hub) get(id string) (*session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.started {
		return nil, ErrNotStarted
	}
	s, ok := h.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (h *Hub) ready() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.started {
		return ErrNotStarted
	}
	return nil
}
