package playtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/games/reaction"
	"github.com/okian/arcadehub/internal/domain/games/tictactoe"
	"github.com/okian/arcadehub/internal/domain/games/wordpuzzle"
	"github.com/okian/arcadehub/internal/domain/scramble"
)

// winningMoves places X on the left column while O takes the top two cells
// of the middle column.
var winningMoves = []int{0, 1, 3, 4, 6}

type snapshot struct {
	Terminal bool            `json:"terminal"`
	Score    *int            `json:"score"`
	Version  uint64          `json:"version"`
	State    json.RawMessage `json:"state"`
}

type sessionView struct {
	ID       string   `json:"id"`
	GameID   string   `json:"gameId"`
	Snapshot snapshot `json:"snapshot"`
}

type inputResult struct {
	Applied bool        `json:"applied"`
	Session sessionView `json:"session"`
}

// player drives one session through the hub API.
type player struct {
	c    *HTTPClient
	poll time.Duration
}

func (p *player) create(ctx context.Context, gameID string) (sessionView, error) {
	var v sessionView
	_, err := p.c.do(ctx, http.MethodPost, "/sessions", map[string]string{"gameId": gameID}, &v)
	return v, err
}

func (p *player) get(ctx context.Context, id string) (sessionView, error) {
	var v sessionView
	_, err := p.c.do(ctx, http.MethodGet, "/sessions/"+id, nil, &v)
	return v, err
}

func (p *player) start(ctx context.Context, id string) (sessionView, error) {
	var v sessionView
	_, err := p.c.do(ctx, http.MethodPost, "/sessions/"+id+"/start", nil, &v)
	return v, err
}

func (p *player) input(ctx context.Context, id string, ev engine.Event) (inputResult, error) {
	var r inputResult
	_, err := p.c.do(ctx, http.MethodPost, "/sessions/"+id+"/input", ev, &r)
	return r, err
}

func (p *player) close(ctx context.Context, id string) {
	_, _ = p.c.do(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
}

// play runs gameID to a terminal state and returns the session and its score.
func (p *player) play(ctx context.Context, gameID string) (string, int, error) {
	v, err := p.create(ctx, gameID)
	if err != nil {
		return "", 0, fmt.Errorf("create %s session: %w", gameID, err)
	}
	switch gameID {
	case GameTicTacToe:
		v, err = p.playTicTacToe(ctx, v)
	case GameReaction:
		v, err = p.playReaction(ctx, v)
	case GameWord:
		v, err = p.playWord(ctx, v)
	default:
		err = fmt.Errorf("no strategy for %q", gameID)
	}
	if err != nil {
		return v.ID, 0, err
	}
	if !v.Snapshot.Terminal || v.Snapshot.Score == nil {
		return v.ID, 0, fmt.Errorf("%s session %s did not finish", gameID, v.ID)
	}
	return v.ID, *v.Snapshot.Score, nil
}

func (p *player) playTicTacToe(ctx context.Context, v sessionView) (sessionView, error) {
	v, err := p.start(ctx, v.ID)
	if err != nil {
		return v, err
	}
	for _, cell := range winningMoves {
		r, err := p.input(ctx, v.ID, engine.Cell(cell))
		if err != nil {
			return v, err
		}
		if !r.Applied {
			return v, fmt.Errorf("move %d was not applied", cell)
		}
		v = r.Session
	}
	var st tictactoe.State
	if err := json.Unmarshal(v.Snapshot.State, &st); err != nil {
		return v, fmt.Errorf("decode board: %w", err)
	}
	if st.Outcome != tictactoe.OutcomeXWin {
		return v, fmt.Errorf("expected X to win, board says %q", st.Outcome)
	}
	return v, nil
}

func (p *player) playReaction(ctx context.Context, v sessionView) (sessionView, error) {
	v, err := p.start(ctx, v.ID)
	if err != nil {
		return v, err
	}
	for {
		var st reaction.State
		if err := json.Unmarshal(v.Snapshot.State, &st); err != nil {
			return v, fmt.Errorf("decode probe: %w", err)
		}
		switch st.Phase {
		case reaction.PhaseLive:
			r, err := p.input(ctx, v.ID, engine.Click())
			return r.Session, err
		case reaction.PhaseArmed:
		default:
			return v, fmt.Errorf("unexpected reaction phase %q", st.Phase)
		}
		if err := sleep(ctx, p.poll); err != nil {
			return v, err
		}
		if v, err = p.get(ctx, v.ID); err != nil {
			return v, err
		}
	}
}

func (p *player) playWord(ctx context.Context, v sessionView) (sessionView, error) {
	v, err := p.start(ctx, v.ID)
	if err != nil {
		return v, err
	}
	solve := newSolver(scramble.Default())
	for !v.Snapshot.Terminal {
		var st wordpuzzle.State
		if err := json.Unmarshal(v.Snapshot.State, &st); err != nil {
			return v, fmt.Errorf("decode puzzle: %w", err)
		}
		if word, ok := solve(st.Letters); ok && st.Phase == wordpuzzle.PhaseActive {
			r, err := p.input(ctx, v.ID, engine.Answer(word))
			if err != nil {
				return v, err
			}
			v = r.Session
			continue
		}
		if err := sleep(ctx, p.poll); err != nil {
			return v, err
		}
		if v, err = p.get(ctx, v.ID); err != nil {
			return v, err
		}
	}
	return v, nil
}

// newSolver indexes words by their sorted letters.
func newSolver(entries []scramble.Entry) func(letters string) (string, bool) {
	byKey := make(map[string]string, len(entries))
	for _, e := range entries {
		byKey[sortLetters(e.Word)] = e.Word
	}
	return func(letters string) (string, bool) {
		if letters == "" {
			return "", false
		}
		w, ok := byKey[sortLetters(strings.ToUpper(letters))]
		return w, ok
	}
}

func sortLetters(s string) string {
	r := []rune(s)
	slices.Sort(r)
	return string(r)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
