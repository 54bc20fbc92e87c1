// Package wordpuzzle implements the timed word scramble engine.
package wordpuzzle

import (
	"strings"
	"sync"
	"time"

	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/scramble"
	"github.com/okian/arcadehub/internal/domain/timer"
)

// GameID is the catalog id.
const GameID = "word-scramble"

// DefaultSeconds is the round length.
const DefaultSeconds = 60

const (
	basePoints    = 50
	attemptCost   = 5
	minimumPoints = 10
	tick          = time.Second
)

// Phase of a round.
type Phase string

// Phases.
const (
	PhaseIdle   Phase = "idle"
	PhaseActive Phase = "active"
	PhaseOver   Phase = "over"
)

// Puzzles draws the next puzzle.
type Puzzles interface {
	Next() scramble.Puzzle
}

// State is the renderable round. The answer is only revealed once the round is over.
type State struct {
	Phase            Phase  `json:"phase"`
	Letters          string `json:"letters,omitempty"`
	Hint             string `json:"hint,omitempty"`
	Answer           string `json:"answer,omitempty"`
	RemainingSeconds int    `json:"remainingSeconds"`
	Score            int    `json:"score"`
	Attempts         int    `json:"attempts"`
	Solved           int    `json:"solved"`
	LastAward        int    `json:"lastAward,omitempty"`
}

// Game is a word scramble session.
type Game struct {
	mu      sync.Mutex
	sched   timer.Scheduler
	puzzles Puzzles
	seconds int
	observe func(result string)

	phase     Phase
	puzzle    scramble.Puzzle
	remaining int
	score     int
	attempts  int
	solved    int
	lastAward int

	pending timer.Handle
	gen     uint64
	version uint64
}

var _ engine.Engine = (*Game)(nil)

// New returns an idle round. It panics if no puzzle source is configured and
// the embedded word list cannot be loaded.
func New(opts ...Option) *Game {
	g := &Game{
		sched:   timer.System(),
		seconds: DefaultSeconds,
		observe: func(string) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.puzzles == nil {
		gen, err := scramble.NewGenerator(scramble.Default())
		if err != nil {
			panic(err)
		}
		g.puzzles = gen
	}
	g.phase = PhaseIdle
	g.remaining = g.seconds
	return g
}

// GameID returns the catalog id.
func (g *Game) GameID() string { return GameID }

// Start begins a new round from any state.
func (g *Game) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cancelPending()
	g.gen++
	g.version++
	g.phase = PhaseActive
	g.remaining = g.seconds
	g.score, g.attempts, g.solved, g.lastAward = 0, 0, 0, 0
	g.puzzle = g.puzzles.Next()
	g.schedule()
}

// schedule must be called with g.mu held.
func (g *Game) schedule() {
	gen := g.gen
	g.pending = g.sched.AfterFunc(tick, func() { g.countdown(gen) })
}

func (g *Game) countdown(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || g.phase != PhaseActive {
		g.observe("stale")
		return
	}
	g.observe("fired")
	g.remaining--
	g.version++
	if g.remaining <= 0 {
		g.remaining = 0
		g.phase = PhaseOver
		g.pending = nil
		return
	}
	g.schedule()
}

// Apply checks an answer against the active puzzle.
func (g *Game) Apply(ev engine.Event) {
	if ev.Kind != engine.EventAnswer || strings.TrimSpace(ev.Answer) == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseActive {
		return
	}
	g.version++
	if !strings.EqualFold(ev.Answer, g.puzzle.Answer) {
		g.attempts++
		g.lastAward = 0
		return
	}
	award := Award(g.attempts)
	g.score += award
	g.lastAward = award
	g.solved++
	g.attempts = 0
	g.puzzle = g.puzzles.Next()
}

// Award is the points for a correct answer after wrong attempts.
func Award(wrongAttempts int) int {
	return max(minimumPoints, basePoints-attemptCost*wrongAttempts)
}

// cancelPending must be called with g.mu held.
func (g *Game) cancelPending() {
	if g.pending != nil {
		if g.pending.Cancel() {
			g.observe("cancelled")
		}
		g.pending = nil
	}
}

// IsTerminal reports whether the round timed out.
func (g *Game) IsTerminal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseOver
}

// Score returns the round total once the timer has run out.
func (g *Game) Score() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseOver {
		return 0, false
	}
	return g.score, true
}

// Reset returns to idle discarding the round.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelPending()
	g.gen++
	g.version++
	g.phase = PhaseIdle
	g.puzzle = scramble.Puzzle{}
	g.remaining = g.seconds
	g.score, g.attempts, g.solved, g.lastAward = 0, 0, 0, 0
}

// Snapshot returns the scrambled word, timer and points. The answer is
// included once the round is over.
func (g *Game) Snapshot() engine.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := State{
		Phase:            g.phase,
		RemainingSeconds: g.remaining,
		Score:            g.score,
		Attempts:         g.attempts,
		Solved:           g.solved,
		LastAward:        g.lastAward,
	}
	if g.phase != PhaseIdle {
		st.Letters = g.puzzle.Letters
		st.Hint = g.puzzle.Hint
	}
	if g.phase == PhaseOver {
		st.Answer = g.puzzle.Answer
	}
	snap := engine.Snapshot{
		GameID:   GameID,
		Terminal: g.phase == PhaseOver,
		Version:  g.version,
		State:    st,
	}
	if g.phase == PhaseOver {
		sc := g.score
		snap.Score = &sc
	}
	return snap
}

// Close stops the countdown.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelPending()
	g.gen++
}
