// Package inflight guards keys that have an operation outstanding.
package inflight

import (
	"context"
	"sync"
	"sync/atomic"
)

// Guard admits at most one holder per key.
type Guard interface {
	// TryAcquire claims key. It returns ErrHeld if key is already claimed and
	// ErrCapacity if the guard is bounded and full.
	TryAcquire(ctx context.Context, key string) error

	// Release frees key. Releasing an unclaimed key is a no-op.
	Release(ctx context.Context, key string)

	// Held reports whether key is claimed.
	Held(key string) bool

	Size() int64
}

// inMemoryGuard keeps claims in a map.
// For bounded mode (maxSize > 0) new claims are refused once maxSize keys are held.
// For unbounded mode (maxSize <= 0) there is no limit.
type inMemoryGuard struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryGuard creates a guard with configuration options.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		maxSize: 10_000,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.held = make(map[string]struct{})
	return g
}

func (g *inMemoryGuard) TryAcquire(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return ErrHeld
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return ErrCapacity
	}
	g.held[key] = struct{}{}
	g.size.Add(1)
	return nil
}

func (g *inMemoryGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		delete(g.held, key)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}

// Size returns the number of keys currently claimed.
func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
