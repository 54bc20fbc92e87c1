// Package tictactoe implements the two-player board game engine.
package tictactoe

import (
	"sync"

	"github.com/okian/arcadehub/internal/domain/engine"
)

// GameID is the catalog id.
const GameID = "tic-tac-toe"

// Marks placed on the board.
const (
	MarkNone = ""
	MarkX    = "X"
	MarkO    = "O"
)

// Outcome values.
const (
	OutcomeNone = "none"
	OutcomeXWin = "x-wins"
	OutcomeOWin = "o-wins"
	OutcomeDraw = "draw"
)

// Scores by outcome.
const (
	ScoreXWin = 100
	ScoreOWin = 50
	ScoreDraw = 25
)

const cells = 9

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// State is the renderable board.
type State struct {
	Board       [cells]string `json:"board"`
	Current     string        `json:"current"`
	Outcome     string        `json:"outcome"`
	Moves       int           `json:"moves"`
	WinningLine []int         `json:"winningLine,omitempty"`
}

// Game is a tic-tac-toe session.
type Game struct {
	mu      sync.Mutex
	state   State
	version uint64
}

var _ engine.Engine = (*Game)(nil)

// New returns a game ready for X to move.
func New() *Game {
	g := &Game{}
	g.reset()
	return g
}

// Factory adapts New to engine.Factory.
func Factory() engine.Engine { return New() }

// GameID returns the catalog id.
func (g *Game) GameID() string { return GameID }

// Start clears the board. The board game has no separate start phase.
func (g *Game) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

// Reset clears the board and gives the move back to X.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

func (g *Game) reset() {
	g.state = State{Current: MarkX, Outcome: OutcomeNone}
	g.version++
}

// Apply places the current mark on ev.Cell.
func (g *Game) Apply(ev engine.Event) {
	if ev.Kind != engine.EventCell {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	s := &g.state
	if s.Outcome != OutcomeNone || ev.Cell < 0 || ev.Cell >= cells || s.Board[ev.Cell] != MarkNone {
		return
	}
	s.Board[ev.Cell] = s.Current
	s.Moves++
	g.version++

	if line, mark, ok := winner(s.Board); ok {
		s.WinningLine = line
		if mark == MarkX {
			s.Outcome = OutcomeXWin
		} else {
			s.Outcome = OutcomeOWin
		}
		return
	}
	if s.Moves == cells {
		s.Outcome = OutcomeDraw
		return
	}
	if s.Current == MarkX {
		s.Current = MarkO
	} else {
		s.Current = MarkX
	}
}

func winner(b [cells]string) ([]int, string, bool) {
	for _, l := range lines {
		if b[l[0]] != MarkNone && b[l[0]] == b[l[1]] && b[l[0]] == b[l[2]] {
			return []int{l[0], l[1], l[2]}, b[l[0]], true
		}
	}
	return nil, MarkNone, false
}

// IsTerminal reports a win or a full board.
func (g *Game) IsTerminal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Outcome != OutcomeNone
}

// Score returns the points for the outcome. ok is false while play continues.
func (g *Game) Score() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return score(g.state.Outcome)
}

func score(outcome string) (int, bool) {
	switch outcome {
	case OutcomeXWin:
		return ScoreXWin, true
	case OutcomeOWin:
		return ScoreOWin, true
	case OutcomeDraw:
		return ScoreDraw, true
	default:
		return 0, false
	}
}

// Outcome returns the current outcome.
func (g *Game) Outcome() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Outcome
}

// Snapshot returns a copy of the board.
func (g *Game) Snapshot() engine.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state
	st.WinningLine = append([]int(nil), g.state.WinningLine...)
	snap := engine.Snapshot{
		GameID:   GameID,
		Terminal: st.Outcome != OutcomeNone,
		Version:  g.version,
		State:    st,
	}
	if sc, ok := score(st.Outcome); ok {
		snap.Score = &sc
	}
	return snap
}

// Close is a no-op; the board game holds no timers.
func (g *Game) Close() {}
