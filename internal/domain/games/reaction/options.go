package reaction

import (
	"time"

	"github.com/okian/arcadehub/internal/domain/timer"
)

// Option configures a Game.
type Option func(*Game)

// WithScheduler sets the clock and scheduler. Tests pass timer.Manual.
func WithScheduler(s timer.Scheduler) Option {
	return func(g *Game) {
		if s != nil {
			g.sched = s
		}
	}
}

// WithDelayRange sets the arm delay bounds [lo, hi). Invalid ranges are ignored.
func WithDelayRange(lo, hi time.Duration) Option {
	return func(g *Game) {
		if lo >= 0 && hi > lo {
			g.minDelay, g.maxDelay = lo, hi
		}
	}
}

// WithRand sets the source used to draw delays.
func WithRand(r Rand) Option {
	return func(g *Game) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithTimerObserver is told "fired" or "stale" whenever the arm callback runs
// and "cancelled" whenever a pending one is cancelled.
func WithTimerObserver(fn func(result string)) Option {
	return func(g *Game) {
		if fn != nil {
			g.observe = fn
		}
	}
}
