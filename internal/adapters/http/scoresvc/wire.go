package scoresvc

import "time"

// ScoreRequest is the body of POST /v1/scores.
type ScoreRequest struct {
	GameID string `json:"game_id"`
	Score  int    `json:"score"`
}

// Score is one stored submission.
type Score struct {
	ID          string    `json:"id"`
	Principal   string    `json:"principal"`
	DisplayName string    `json:"display_name,omitempty"`
	GameID      string    `json:"game_id"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ScoresResponse is the body of GET /v1/games/{gameID}/scores.
type ScoresResponse struct {
	GameID string  `json:"game_id"`
	Scores []Score `json:"scores"`
}

// Profile is the body of the profile routes.
type Profile struct {
	Principal   string `json:"principal,omitempty"`
	DisplayName string `json:"display_name"`
}

// TokenRequest is the body of POST /v1/tokens.
type TokenRequest struct {
	Principal string `json:"principal"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
