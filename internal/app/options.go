package service

import (
	"time"

	"github.com/okian/arcadehub/internal/domain/catalog"
	"github.com/okian/arcadehub/internal/domain/timer"
	"github.com/okian/arcadehub/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithWorkerCount sets the number of submission workers.
func WithWorkerCount(count int) Option {
	return func(h *Hub) {
		if count > 0 {
			h.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued submissions.
func WithQueueSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.queueSize = size
		}
	}
}

// WithSubmitTimeout bounds each remote submission.
func WithSubmitTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.submitTimeout = d
		}
	}
}

// WithLeaderboardLimit sets how many rows the leaderboard shows.
func WithLeaderboardLimit(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.leaderboardLimit = n
		}
	}
}

// WithSessionIdle closes sessions untouched for d.
func WithSessionIdle(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.sessionIdle = d
		}
	}
}

// WithSweepInterval sets how often idle sessions are looked for.
func WithSweepInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.sweepInterval = d
		}
	}
}

// WithCatalog replaces the built-in game registry.
func WithCatalog(r *catalog.Registry) Option {
	return func(h *Hub) {
		if r != nil {
			h.catalog = r
		}
	}
}

// WithIdentity replaces the request-context identity provider.
func WithIdentity(p IdentityProvider) Option {
	return func(h *Hub) {
		if p != nil {
			h.identity = p
		}
	}
}

// WithClock sets the time source for session activity.
func WithClock(c timer.Clock) Option {
	return func(h *Hub) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
