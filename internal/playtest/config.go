package playtest

import "time"

// Config holds configuration for a playtest run.
type Config struct {
	HubURL       string        // Base URL of the hub API
	ScoringURL   string        // Base URL of the scoring service, used for the dev token
	Principal    string        // Player to act as
	DisplayName  string        // Display name saved before playing
	Games        []string      // Games to play, in order
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between session polls in timed games
	Verbose      bool          // Log every request
}

// Game ids the runner knows how to play.
const (
	GameTicTacToe = "tic-tac-toe"
	GameReaction  = "reaction-timer"
	GameWord      = "word-scramble"
)

// AllGames lists every playable game in catalog order.
var AllGames = []string{GameTicTacToe, GameReaction, GameWord}

// Result is the outcome of one played game.
type Result struct {
	GameID    string
	Score     int
	Submitted bool
	Rank      int // 0 when the score is not on the visible board
	Best      int
	Err       error
}

// Stats holds run statistics.
type Stats struct {
	GamesPlayed    int
	GamesSubmitted int
	GamesVerified  int
	GamesFailed    int
	Results        []Result
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
