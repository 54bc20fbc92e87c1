// Package repository stores submitted scores and player profiles for the
// scoring service.
package repository

import (
	"context"
	"time"

	"github.com/okian/arcadehub/internal/domain/model"
)

// Score is one appended submission.
type Score struct {
	ID          string
	Principal   string
	GameID      string
	Score       int
	SubmittedAt time.Time
}

// Store provides append-only score storage and profile storage.
//
// Scores within a game are ordered by score desc, then SubmittedAt asc,
// then ID asc.
type Store interface {
	// Append records a submission. Scores are never updated or removed.
	Append(ctx context.Context, s Score) error

	// Top returns the first n scores for gameID in rank order.
	// Returns ErrInvalidLimit if n < 1.
	Top(ctx context.Context, gameID string, n int) ([]Score, error)

	// Best returns the highest-ranked score of principal for gameID.
	// Returns ErrNotFound if the principal has not scored.
	Best(ctx context.Context, gameID, principal string) (Score, error)

	// GetProfile returns the profile of principal or ErrNotFound.
	GetProfile(ctx context.Context, principal string) (model.Profile, error)

	// PutProfile creates or replaces the profile of principal.
	PutProfile(ctx context.Context, principal string, p model.Profile) error

	// Count returns the number of stored scores.
	Count(ctx context.Context) int

	Close() error
}

// ranksBefore reports whether a is listed before b on a leaderboard.
func ranksBefore(a, b *Score) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ID < b.ID
}
