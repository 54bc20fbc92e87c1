// Package engine defines the capability contract every game session satisfies.
//
// Engines are independent state machines. Invalid input is ignored rather than
// reported, and every method is safe for concurrent use because delayed
// callbacks run on timer goroutines.
package engine

// EventKind discriminates input events.
type EventKind string

// Input event kinds.
const (
	EventCell   EventKind = "cell"
	EventClick  EventKind = "click"
	EventAnswer EventKind = "answer"
)

// Event is one discrete player input.
type Event struct {
	Kind   EventKind `json:"kind"`
	Cell   int       `json:"cell,omitempty"`
	Answer string    `json:"answer,omitempty"`
}

// Cell builds a board placement event.
func Cell(i int) Event { return Event{Kind: EventCell, Cell: i} }

// Click builds a click event.
func Click() Event { return Event{Kind: EventClick} }

// Answer builds a word answer event.
func Answer(s string) Event { return Event{Kind: EventAnswer, Answer: s} }

// Engine is a single game session.
type Engine interface {
	// GameID returns the catalog id of the game.
	GameID() string
	// Start (re)initializes the session from any state.
	Start()
	// Apply feeds one event. Events invalid for the current state are no-ops.
	Apply(ev Event)
	// IsTerminal reports whether the session has a final outcome.
	IsTerminal() bool
	// Score returns the final score; ok is false until the session is terminal.
	Score() (score int, ok bool)
	// Reset returns to the initial state discarding all session data.
	Reset()
	// Snapshot returns a copy of the current state for rendering.
	Snapshot() Snapshot
	// Close cancels every pending timer. The engine stays readable.
	Close()
}

// Factory builds a fresh engine.
type Factory func() Engine

// Snapshot is the renderable state of an engine.
type Snapshot struct {
	GameID   string `json:"gameId"`
	Terminal bool   `json:"terminal"`
	Score    *int   `json:"score,omitempty"`
	// Version increases on every state change.
	Version uint64 `json:"version"`
	// State is the game-specific view.
	State any `json:"state"`
}
