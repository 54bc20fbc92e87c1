package wordpuzzle

import (
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

// WithPuzzles sets the puzzle source.
func WithPuzzles(p Puzzles) Option {
	return func(g *Game) {
		if p != nil {
			g.puzzles = p
		}
	}
}

// WithSeconds sets the round length.
func WithSeconds(n int) Option {
	return func(g *Game) {
		if n > 0 {
			g.seconds = n
		}
	}
}

// WithTimerObserver is told "fired", "stale" or "cancelled" for every countdown tick.
func WithTimerObserver(fn func(result string)) Option {
	return func(g *Game) {
		if fn != nil {
			g.observe = fn
		}
	}
}
