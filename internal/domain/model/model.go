// Package model contains domain models passed between layers.
package model

import "time"

// Identity is the caller as reported by the authentication collaborator.
// An empty Principal is anonymous.
type Identity struct {
	Principal string
	Token     string
}

// Anonymous reports whether the identity carries no principal.
func (i Identity) Anonymous() bool {
	return i.Principal == ""
}

// ScoreSubmission is one terminal outcome on its way to the scoring service.
type ScoreSubmission struct {
	GameID string
	Score  int
}

// LeaderboardEntry is a row owned by the scoring service.
type LeaderboardEntry struct {
	Player      Identity
	DisplayName string
	GameID      string
	Score       int
	SubmittedAt time.Time
}

// Profile is the player-chosen presentation data.
type Profile struct {
	DisplayName string
}

// Difficulty labels how hard a game is.
type Difficulty string

// Known difficulties.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// GameInfo is catalog metadata for one game.
type GameInfo struct {
	ID          string
	Title       string
	Description string
	Category    string
	Playable    bool
	Tags        []string
	Difficulty  Difficulty
}
