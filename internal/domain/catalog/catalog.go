// Package catalog maps game ids to metadata and engine factories.
package catalog

import (
	_ "embed"
	"fmt"

	"go.yaml.in/yaml/v3"

	"github.com/okian/arcadehub/internal/domain/engine"
	"github.com/okian/arcadehub/internal/domain/games/reaction"
	"github.com/okian/arcadehub/internal/domain/games/tictactoe"
	"github.com/okian/arcadehub/internal/domain/games/wordpuzzle"
	"github.com/okian/arcadehub/internal/domain/model"
)

//go:embed games.yaml
var gamesYAML []byte

type gameRecord struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Playable    bool     `yaml:"playable"`
	Tags        []string `yaml:"tags"`
	Difficulty  string   `yaml:"difficulty"`
}

type entry struct {
	info    model.GameInfo
	factory engine.Factory
}

// Registry holds games in registration order. It is read-only after setup.
type Registry struct {
	order []string
	games map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{games: make(map[string]entry)}
}

// Register adds a game. A playable game needs a factory. Registering an id twice panics.
func (r *Registry) Register(info model.GameInfo, factory engine.Factory) {
	if _, ok := r.games[info.ID]; ok {
		panic(fmt.Sprintf("catalog: game %q registered twice", info.ID))
	}
	if info.Playable && factory == nil {
		panic(fmt.Sprintf("catalog: playable game %q has no factory", info.ID))
	}
	r.order = append(r.order, info.ID)
	r.games[info.ID] = entry{info: info, factory: factory}
}

// Get returns the metadata for id.
func (r *Registry) Get(id string) (model.GameInfo, error) {
	e, ok := r.games[id]
	if !ok {
		return model.GameInfo{}, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	return e.info, nil
}

// New builds a fresh engine for id.
func (r *Registry) New(id string) (engine.Engine, error) {
	e, ok := r.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	if !e.info.Playable {
		return nil, fmt.Errorf("%w: %s", ErrNotPlayable, id)
	}
	return e.factory(), nil
}

// List returns every game in registration order.
func (r *Registry) List() []model.GameInfo {
	out := make([]model.GameInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.games[id].info)
	}
	return out
}

// Playable returns the games that have an engine.
func (r *Registry) Playable() []model.GameInfo {
	var out []model.GameInfo
	for _, id := range r.order {
		if info := r.games[id].info; info.Playable {
			out = append(out, info)
		}
	}
	return out
}

// Default returns the registry of the built-in games described in games.yaml.
func Default(opts ...Option) *Registry {
	s := &settings{
		minDelay: reaction.DefaultMinDelay,
		maxDelay: reaction.DefaultMaxDelay,
		seconds:  wordpuzzle.DefaultSeconds,
	}
	for _, opt := range opts {
		opt(s)
	}

	factories := map[string]engine.Factory{
		tictactoe.GameID: tictactoe.Factory,
		reaction.GameID: func() engine.Engine {
			return reaction.New(
				reaction.WithScheduler(s.sched),
				reaction.WithDelayRange(s.minDelay, s.maxDelay),
				reaction.WithTimerObserver(s.observer(reaction.GameID)),
			)
		},
		wordpuzzle.GameID: func() engine.Engine {
			return wordpuzzle.New(
				wordpuzzle.WithScheduler(s.sched),
				wordpuzzle.WithSeconds(s.seconds),
				wordpuzzle.WithPuzzles(s.puzzles),
				wordpuzzle.WithTimerObserver(s.observer(wordpuzzle.GameID)),
			)
		},
	}

	var records []gameRecord
	if err := yaml.Unmarshal(gamesYAML, &records); err != nil {
		panic(fmt.Sprintf("catalog: embedded games.yaml: %v", err))
	}
	r := NewRegistry()
	for _, rec := range records {
		r.Register(model.GameInfo{
			ID:          rec.ID,
			Title:       rec.Title,
			Description: rec.Description,
			Category:    rec.Category,
			Playable:    rec.Playable,
			Tags:        rec.Tags,
			Difficulty:  model.Difficulty(rec.Difficulty),
		}, factories[rec.ID])
	}
	return r
}

func (s *settings) observer(game string) func(string) {
	if s.timerObserver == nil {
		return nil
	}
	return func(result string) { s.timerObserver(game, result) }
}
