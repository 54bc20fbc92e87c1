// Package leaderboard is the cached read side of the scoring service.
//
// Views are fetched lazily and kept until a successful submission for the
// same game invalidates them. Failed fetches are never cached.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
)

// DefaultLimit is the number of rows displayed.
const DefaultLimit = 10

// Sentinel errors, shared with the submission path.
var (
	ErrUnauthenticated = model.ErrUnauthenticated
	ErrRemoteFailure   = model.ErrRemoteFailure
)

// IdentityProvider reports who is calling.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (model.Identity, bool)
}

// Source is the remote read API.
type Source interface {
	TopScores(ctx context.Context, gameID string) ([]model.LeaderboardEntry, error)
	BestScore(ctx context.Context, id model.Identity, gameID string) (model.LeaderboardEntry, bool, error)
}

// Entry is a ranked row.
type Entry struct {
	Rank int
	model.LeaderboardEntry
}

type bestKey struct {
	principal string
	gameID    string
}

type bestValue struct {
	entry Entry
	found bool
}

// ViewModel caches top scores per game and the caller's best per game.
type ViewModel struct {
	identity IdentityProvider
	source   Source
	limit    int
	logger   logger.Logger

	mu   sync.Mutex
	top  map[string][]Entry
	best map[bestKey]bestValue
	// gen counts invalidations per game so a fetch racing an invalidation is not cached.
	gen map[string]uint64
}

// New returns an empty ViewModel.
func New(identity IdentityProvider, source Source, opts ...Option) *ViewModel {
	v := &ViewModel{
		identity: identity,
		source:   source,
		limit:    DefaultLimit,
		logger:   logger.Get().Named("leaderboard"),
		top:      make(map[string][]Entry),
		best:     make(map[bestKey]bestValue),
		gen:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// TopScores returns the highest scores for gameID in the service's order,
// truncated to the display limit and ranked from 1.
func (v *ViewModel) TopScores(ctx context.Context, gameID string) ([]Entry, error) {
	v.mu.Lock()
	cached, ok := v.top[gameID]
	gen := v.gen[gameID]
	v.mu.Unlock()
	metrics.RecordCacheLookup("top_scores", ok)
	if ok {
		return append([]Entry(nil), cached...), nil
	}

	rows, err := v.source.TopScores(ctx, gameID)
	if err != nil {
		v.logger.Warn(ctx, "top scores fetch failed", logger.String("game", gameID), logger.Error(err))
		return nil, remoteErr("top scores", gameID, err)
	}
	if len(rows) > v.limit {
		rows = rows[:v.limit]
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{Rank: i + 1, LeaderboardEntry: r}
	}

	v.mu.Lock()
	if v.gen[gameID] == gen {
		v.top[gameID] = entries
	}
	v.mu.Unlock()
	return append([]Entry(nil), entries...), nil
}

// CallerBestScore returns the caller's best entry for gameID. The bool is
// false when the caller has not scored yet. The rank is zero: the service
// does not report the position of a personal best.
func (v *ViewModel) CallerBestScore(ctx context.Context, gameID string) (Entry, bool, error) {
	id, ok := v.identity.CurrentIdentity(ctx)
	if !ok || id.Anonymous() {
		return Entry{}, false, fmt.Errorf("caller best %s: %w", gameID, ErrUnauthenticated)
	}
	key := bestKey{principal: id.Principal, gameID: gameID}

	v.mu.Lock()
	cached, ok := v.best[key]
	gen := v.gen[gameID]
	v.mu.Unlock()
	metrics.RecordCacheLookup("caller_best", ok)
	if ok {
		return cached.entry, cached.found, nil
	}

	row, found, err := v.source.BestScore(ctx, id, gameID)
	if err != nil {
		v.logger.Warn(ctx, "caller best fetch failed", logger.String("game", gameID), logger.Error(err))
		return Entry{}, false, remoteErr("caller best", gameID, err)
	}
	val := bestValue{found: found}
	if found {
		val.entry = Entry{LeaderboardEntry: row}
	}

	v.mu.Lock()
	if v.gen[gameID] == gen {
		v.best[key] = val
	}
	v.mu.Unlock()
	return val.entry, val.found, nil
}

// Invalidate drops both views for gameID. Other games are untouched.
func (v *ViewModel) Invalidate(gameID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen[gameID]++
	delete(v.top, gameID)
	for k := range v.best {
		if k.gameID == gameID {
			delete(v.best, k)
		}
	}
}

func remoteErr(view, gameID string, err error) error {
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrRemoteFailure) {
		return fmt.Errorf("%s %s: %w", view, gameID, err)
	}
	return fmt.Errorf("%s %s: %w: %v", view, gameID, ErrRemoteFailure, err)
}
