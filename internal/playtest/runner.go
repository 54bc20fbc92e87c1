package playtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/arcadehub/internal/adapters/remote"
	"github.com/okian/arcadehub/pkg/logger"
)

// ErrVerification reports a leaderboard that does not reflect a submitted score.
var ErrVerification = errors.New("leaderboard verification failed")

type submitResponse struct {
	Status  string `json:"status"`
	Score   *int   `json:"score"`
	Message string `json:"message"`
}

type leaderboardEntry struct {
	Rank        int    `json:"rank"`
	Principal   string `json:"principal"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

type leaderboardResponse struct {
	Entries []leaderboardEntry `json:"entries"`
}

type bestResponse struct {
	Found bool              `json:"found"`
	Entry *leaderboardEntry `json:"entry"`
}

// Run executes the complete playtest and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("playtest")

	log.Info(ctx, "starting arcade playtest",
		logger.String("hubURL", config.HubURL),
		logger.String("scoringURL", config.ScoringURL),
		logger.String("principal", config.Principal),
		logger.String("games", strings.Join(config.Games, ",")),
		logger.Duration("timeout", config.Timeout))

	client := newHTTPClient(config.HubURL, config.Timeout, config.Verbose)

	// Step 1: Check hub health
	if _, err := client.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return stats, fmt.Errorf("hub health check failed: %w", err)
	}

	// Step 2: Obtain a dev token from the scoring service
	scoring := remote.NewClient(config.ScoringURL, remote.WithHTTPClient(&http.Client{Timeout: config.Timeout}))
	id, exp, err := scoring.IssueToken(ctx, config.Principal)
	if err != nil {
		return stats, fmt.Errorf("token request failed (is dev_tokens enabled?): %w", err)
	}
	client.token = id.Token
	log.Info(ctx, "token issued", logger.String("principal", id.Principal), logger.Any("expiresAt", exp))

	// Step 3: Pick a display name
	if config.DisplayName != "" {
		body := map[string]string{"displayName": config.DisplayName}
		if _, err := client.do(ctx, http.MethodPut, "/profile", body, nil); err != nil {
			return stats, fmt.Errorf("profile setup failed: %w", err)
		}
	}

	// Step 4: Play, submit and verify each game
	p := &player{c: client, poll: config.PollInterval}
	for _, gameID := range config.Games {
		res := playOne(ctx, p, config.Principal, gameID)
		stats.Results = append(stats.Results, res)
		stats.GamesPlayed++
		if res.Submitted {
			stats.GamesSubmitted++
		}
		if res.Err != nil {
			stats.GamesFailed++
			log.Warn(ctx, "game failed", logger.String("game", gameID), logger.Error(res.Err))
			continue
		}
		stats.GamesVerified++
		log.Info(ctx, "game verified", logger.String("game", gameID), logger.Int("score", res.Score),
			logger.Int("best", res.Best), logger.Int("rank", res.Rank))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "playtest finished",
		logger.Int("played", stats.GamesPlayed),
		logger.Int("verified", stats.GamesVerified),
		logger.Int("failed", stats.GamesFailed),
		logger.Duration("duration", stats.Duration))

	if stats.GamesFailed > 0 {
		return stats, fmt.Errorf("%d of %d games failed", stats.GamesFailed, stats.GamesPlayed)
	}
	return stats, nil
}

func playOne(ctx context.Context, p *player, principal, gameID string) Result {
	res := Result{GameID: gameID}
	sessionID, score, err := p.play(ctx, gameID)
	if sessionID != "" {
		defer p.close(ctx, sessionID)
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.Score = score

	var sub submitResponse
	if _, err := p.c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/submit", nil, &sub); err != nil {
		res.Err = fmt.Errorf("submit: %w", err)
		return res
	}
	res.Submitted = sub.Status == "accepted"
	if !res.Submitted {
		res.Err = fmt.Errorf("submission still %s: %s", sub.Status, sub.Message)
		return res
	}

	var best bestResponse
	if _, err := p.c.do(ctx, http.MethodGet, "/leaderboards/"+gameID+"/me", nil, &best); err != nil {
		res.Err = fmt.Errorf("caller best: %w", err)
		return res
	}
	if !best.Found || best.Entry == nil || best.Entry.Score < score {
		res.Err = fmt.Errorf("%w: best for %s does not include %d", ErrVerification, gameID, score)
		return res
	}
	res.Best = best.Entry.Score

	var board leaderboardResponse
	if _, err := p.c.do(ctx, http.MethodGet, "/leaderboards/"+gameID, nil, &board); err != nil {
		res.Err = fmt.Errorf("leaderboard: %w", err)
		return res
	}
	for i, e := range board.Entries {
		if e.Rank != i+1 {
			res.Err = fmt.Errorf("%w: %s row %d has rank %d", ErrVerification, gameID, i, e.Rank)
			return res
		}
		if i > 0 && e.Score > board.Entries[i-1].Score {
			res.Err = fmt.Errorf("%w: %s is not ordered by score", ErrVerification, gameID)
			return res
		}
		if e.Principal == principal && res.Rank == 0 {
			res.Rank = e.Rank
		}
	}
	return res
}
