package catalog

import (
	"time"

	"github.com/okian/arcadehub/internal/domain/games/wordpuzzle"
	"github.com/okian/arcadehub/internal/domain/timer"
)

// Option configures the engines built by the default catalog.
type Option func(*settings)

type settings struct {
	sched         timer.Scheduler
	minDelay      time.Duration
	maxDelay      time.Duration
	seconds       int
	puzzles       wordpuzzle.Puzzles
	timerObserver func(game, result string)
}

// WithScheduler sets the scheduler every timed engine uses.
func WithScheduler(s timer.Scheduler) Option {
	return func(c *settings) { c.sched = s }
}

// WithReactionDelays sets the reaction arm delay bounds.
func WithReactionDelays(lo, hi time.Duration) Option {
	return func(c *settings) { c.minDelay, c.maxDelay = lo, hi }
}

// WithWordPuzzleSeconds sets the word scramble round length.
func WithWordPuzzleSeconds(n int) Option {
	return func(c *settings) { c.seconds = n }
}

// WithPuzzles sets the word scramble puzzle source.
func WithPuzzles(p wordpuzzle.Puzzles) Option {
	return func(c *settings) { c.puzzles = p }
}

// WithTimerObserver receives timer callback results per game.
func WithTimerObserver(fn func(game, result string)) Option {
	return func(c *settings) { c.timerObserver = fn }
}
