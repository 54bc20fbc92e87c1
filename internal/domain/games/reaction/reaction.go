// Package reaction implements the reaction-time probe engine.
//
// Start arms the probe; after a random delay it goes live and the next click
// measures the reaction. Clicking while armed is a false start.
package reaction

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/timer"
)

// GameID is the catalog id.
const GameID = "reaction-timer"

// Phase of the probe.
type Phase string

// Phases.
const (
	PhaseIdle        Phase = "idle"
	PhaseArmed       Phase = "armed"
	PhaseLive        Phase = "live"
	PhaseResultReady Phase = "resultReady"
	PhaseFalseStart  Phase = "falseStart"
)

// Default arm delay bounds.
const (
	DefaultMinDelay = 2000 * time.Millisecond
	DefaultMaxDelay = 5000 * time.Millisecond
)

const scoreNumerator = 10000

// Rand draws delays.
type Rand interface {
	Int64N(n int64) int64
}

// State is the renderable probe.
type State struct {
	Phase          Phase      `json:"phase"`
	ArmedAt        *time.Time `json:"armedAt,omitempty"`
	LiveAt         *time.Time `json:"liveAt,omitempty"`
	LastReactionMs *int64     `json:"lastReactionMs,omitempty"`
	BestReactionMs *int64     `json:"bestReactionMs,omitempty"`
}

// Game is a reaction probe session.
type Game struct {
	mu       sync.Mutex
	sched    timer.Scheduler
	rng      Rand
	minDelay time.Duration
	maxDelay time.Duration
	observe  func(result string)

	phase   Phase
	armedAt time.Time
	liveAt  time.Time
	last    int64
	hasLast bool
	best    int64
	hasBest bool

	pending timer.Handle
	gen     uint64
	version uint64
}

var _ engine.Engine = (*Game)(nil)

// New returns an idle probe.
func New(opts ...Option) *Game {
	g := &Game{
		sched:    timer.System(),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		observe:  func(string) {},
		phase:    PhaseIdle,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GameID returns the catalog id.
func (g *Game) GameID() string { return GameID }

// Start arms the probe from any state. The best time survives.
func (g *Game) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cancelPending()
	g.gen++
	g.version++
	g.phase = PhaseArmed
	g.armedAt = g.sched.Now()
	g.liveAt = time.Time{}
	g.hasLast = false

	gen := g.gen
	delay := g.minDelay + time.Duration(g.rng.Int64N(int64(g.maxDelay-g.minDelay)))
	g.pending = g.sched.AfterFunc(delay, func() { g.goLive(gen) })
}

func (g *Game) goLive(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || g.phase != PhaseArmed {
		g.observe("stale")
		return
	}
	g.pending = nil
	g.phase = PhaseLive
	g.liveAt = g.sched.Now()
	g.version++
	g.observe("fired")
}

// Apply handles clicks. Anything else is ignored.
func (g *Game) Apply(ev engine.Event) {
	if ev.Kind != engine.EventClick {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.phase {
	case PhaseArmed:
		g.cancelPending()
		g.gen++
		g.phase = PhaseFalseStart
		g.version++
	case PhaseLive:
		ms := g.sched.Now().Sub(g.liveAt).Milliseconds()
		if ms < 0 {
			ms = 0
		}
		g.last, g.hasLast = ms, true
		if !g.hasBest || ms < g.best {
			g.best, g.hasBest = ms, true
		}
		g.phase = PhaseResultReady
		g.version++
	}
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

// IsTerminal reports whether a reaction was measured.
func (g *Game) IsTerminal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseResultReady
}

// Score converts the last reaction time to points. ok is false until a reaction was measured.
func (g *Game) Score() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.score()
}

func (g *Game) score() (int, bool) {
	if g.phase != PhaseResultReady {
		return 0, false
	}
	return Score(g.last), true
}

// Score converts a reaction time to points: max(1, floor(10000/ms)).
// A zero reaction scores 10000.
func Score(ms int64) int {
	if ms <= 0 {
		return scoreNumerator
	}
	return int(max(1, scoreNumerator/ms))
}

// LastReaction returns the most recent measured reaction.
func (g *Game) LastReaction() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Duration(g.last) * time.Millisecond, g.hasLast
}

// Reset returns to idle and forgets the best time.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelPending()
	g.gen++
	g.version++
	g.phase = PhaseIdle
	g.armedAt, g.liveAt = time.Time{}, time.Time{}
	g.last, g.hasLast = 0, false
	g.best, g.hasBest = 0, false
}

// Snapshot returns the phase, timings and score for rendering.
func (g *Game) Snapshot() engine.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := State{Phase: g.phase}
	if !g.armedAt.IsZero() {
		t := g.armedAt
		st.ArmedAt = &t
	}
	if !g.liveAt.IsZero() {
		t := g.liveAt
		st.LiveAt = &t
	}
	if g.hasLast {
		v := g.last
		st.LastReactionMs = &v
	}
	if g.hasBest {
		v := g.best
		st.BestReactionMs = &v
	}
	snap := engine.Snapshot{
		GameID:   GameID,
		Terminal: g.phase == PhaseResultReady,
		Version:  g.version,
		State:    st,
	}
	if sc, ok := g.score(); ok {
		snap.Score = &sc
	}
	return snap
}

// Close cancels the pending arm callback.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelPending()
	g.gen++
}
