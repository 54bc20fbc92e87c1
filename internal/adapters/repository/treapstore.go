package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Each game owns one treap. The BST comparator is ranksBefore, so an
// in-order traversal yields the leaderboard from best to worst. Priorities
// are random, which keeps the expected depth logarithmic regardless of
// the order scores arrive in.

type node struct {
	score *Score
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, s *Score, prio uint64) *node {
	if n == nil {
		return &node{score: s, prio: prio, size: 1}
	}
	if ranksBefore(s, n.score) {
		n.left = insert(n.left, s, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, s, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collectTopN appends up to limit scores in rank order.
func collectTopN(n *node, limit int, out *[]Score) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, *n.score)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// board is the per-game state.
type board struct {
	root *node
	// best holds each principal's highest-ranked score.
	best map[string]*Score
}

// TreapStore keeps every submission in memory.
type TreapStore struct {
	mu       sync.RWMutex
	boards   map[string]*board
	profiles map[string]model.Profile
	count    int
	rng      *rand.Rand
	seed     uint64
	closed   bool

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		boards:                make(map[string]*board),
		profiles:              make(map[string]model.Profile),
		seed:                  uint64(time.Now().UnixNano()),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))

	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics goroutine. Later writes fail with ErrClosed.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Append implements Store.Append in O(log n) expected time.
func (s *TreapStore) Append(ctx context.Context, sc Score) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("append", time.Since(start)) }()

	if err := prepare(&sc); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	b, ok := s.boards[sc.GameID]
	if !ok {
		b = &board{best: make(map[string]*Score)}
		s.boards[sc.GameID] = b
	}
	stored := &sc
	b.root = insert(b.root, stored, s.rng.Uint64())
	if cur, ok := b.best[sc.Principal]; !ok || ranksBefore(stored, cur) {
		b.best[sc.Principal] = stored
	}
	s.count++
	s.mu.Unlock()

	metrics.RecordStoredScore(sc.GameID)
	return nil
}

// Top implements Store.Top.
func (s *TreapStore) Top(ctx context.Context, gameID string, n int) ([]Score, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("top", time.Since(start)) }()

	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[gameID]
	if !ok {
		return []Score{}, nil
	}
	out := make([]Score, 0, min(n, nsize(b.root)))
	collectTopN(b.root, n, &out)
	return out, nil
}

// Best implements Store.Best in O(1).
func (s *TreapStore) Best(ctx context.Context, gameID, principal string) (Score, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("best", time.Since(start)) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.boards[gameID]; ok {
		if sc, ok := b.best[principal]; ok {
			return *sc, nil
		}
	}
	return Score{}, ErrNotFound
}

// GetProfile implements Store.GetProfile.
func (s *TreapStore) GetProfile(ctx context.Context, principal string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[principal]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return p, nil
}

// PutProfile implements Store.PutProfile.
func (s *TreapStore) PutProfile(ctx context.Context, principal string, p model.Profile) error {
	if principal == "" {
		return fmt.Errorf("%w: empty principal", ErrInvalidScore)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.profiles[principal] = p
	return nil
}

// Count returns the total number of stored scores.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// startMetricsUpdater publishes the record count until Close or ctx ends.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateStoreRecords(s.Count(ctx))
			}
		}
	}()
}

// prepare validates sc and fills in the ID and timestamp when absent.
func prepare(sc *Score) error {
	switch {
	case sc.GameID == "":
		return fmt.Errorf("%w: empty game id", ErrInvalidScore)
	case sc.Principal == "":
		return fmt.Errorf("%w: empty principal", ErrInvalidScore)
	case sc.Score < 0:
		return fmt.Errorf("%w: negative score %d", ErrInvalidScore, sc.Score)
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.SubmittedAt.IsZero() {
		sc.SubmittedAt = time.Now().UTC()
	}
	return nil
}
