// Package remote is the hub's HTTP client for the scoring service.
//
// A 401 from the service maps to model.ErrUnauthenticated; every other
// failure, including transport errors, maps to model.ErrRemoteFailure.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	"github.com/okian/arcadehub/internal/adapters/http/scoresvc"
	"github.com/okian/arcadehub/internal/domain/model"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
)

const defaultLimit = 10

// errNotFound is internal; callers see a false "found" result instead.
var errNotFound = errors.New("not found")

// Client talks JSON to the scoring service.
type Client struct {
	base   string
	http   *http.Client
	limit  int
	logger logger.Logger
	tracer trace.Tracer
}

// NewClient returns a Client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		limit:  defaultLimit,
		logger: logger.Get().Named("remote"),
		tracer: otel.Tracer("github.com/okian/arcadehub/internal/adapters/remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitScore appends s for id.
func (c *Client) SubmitScore(ctx context.Context, id model.Identity, s model.ScoreSubmission) error {
	body := scoresvc.ScoreRequest{GameID: s.GameID, Score: s.Score}
	return c.call(ctx, "submit_score", http.MethodPost, "/v1/scores", id.Token, body, nil)
}

// TopScores returns the leaderboard for gameID in service order.
func (c *Client) TopScores(ctx context.Context, gameID string) ([]model.LeaderboardEntry, error) {
	path := "/v1/games/" + url.PathEscape(gameID) + "/scores?limit=" + strconv.Itoa(c.limit)
	var out scoresvc.ScoresResponse
	if err := c.call(ctx, "top_scores", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	entries := make([]model.LeaderboardEntry, len(out.Scores))
	for i, s := range out.Scores {
		entries[i] = toEntry(s)
	}
	return entries, nil
}

// BestScore returns the best score of id for gameID.
func (c *Client) BestScore(ctx context.Context, id model.Identity, gameID string) (model.LeaderboardEntry, bool, error) {
	path := "/v1/games/" + url.PathEscape(gameID) + "/scores/me"
	var out scoresvc.Score
	err := c.call(ctx, "best_score", http.MethodGet, path, id.Token, nil, &out)
	if errors.Is(err, errNotFound) {
		return model.LeaderboardEntry{}, false, nil
	}
	if err != nil {
		return model.LeaderboardEntry{}, false, err
	}
	return toEntry(out), true, nil
}

// GetProfile returns the profile of principal.
func (c *Client) GetProfile(ctx context.Context, id model.Identity, principal string) (model.Profile, bool, error) {
	var out scoresvc.Profile
	err := c.call(ctx, "get_profile", http.MethodGet, "/v1/profiles/"+url.PathEscape(principal), id.Token, nil, &out)
	if errors.Is(err, errNotFound) {
		return model.Profile{}, false, nil
	}
	if err != nil {
		return model.Profile{}, false, err
	}
	return model.Profile{DisplayName: out.DisplayName}, true, nil
}

// SaveProfile replaces the caller's profile.
func (c *Client) SaveProfile(ctx context.Context, id model.Identity, p model.Profile) error {
	return c.call(ctx, "save_profile", http.MethodPut, "/v1/profiles/me", id.Token, scoresvc.Profile{DisplayName: p.DisplayName}, nil)
}

// IssueToken asks a development service for a token naming principal.
func (c *Client) IssueToken(ctx context.Context, principal string) (model.Identity, time.Time, error) {
	var out scoresvc.TokenResponse
	if err := c.call(ctx, "issue_token", http.MethodPost, "/v1/tokens", "", scoresvc.TokenRequest{Principal: principal}, &out); err != nil {
		return model.Identity{}, time.Time{}, err
	}
	return model.Identity{Principal: principal, Token: out.Token}, out.ExpiresAt, nil
}

func (c *Client) call(ctx context.Context, op, method, path, token string, in, out any) (err error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "remote."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method), attribute.String("http.path", path)))
	defer func() {
		result := "ok"
		switch {
		case err == nil:
		case errors.Is(err, errNotFound):
			result = "not_found"
		case errors.Is(err, model.ErrUnauthenticated):
			result = "unauthenticated"
		default:
			result = "error"
		}
		if err != nil && result != "not_found" {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
		metrics.RecordRemoteCall(op, result, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		b, merr := json.Marshal(in)
		if merr != nil {
			return fmt.Errorf("%s: encode: %w: %v", op, model.ErrRemoteFailure, merr)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, model.ErrRemoteFailure, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "scoring service unreachable", logger.String("op", op), logger.Error(err))
		return fmt.Errorf("%s: %w: %v", op, model.ErrRemoteFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w: %s", op, model.ErrUnauthenticated, errorMessage(resp.Body))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, errNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s: %w: status %d: %s", op, model.ErrRemoteFailure, resp.StatusCode, errorMessage(resp.Body))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w: %v", op, model.ErrRemoteFailure, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	var e httpx.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&e); err != nil || e.Message == "" {
		return "no detail"
	}
	return e.Message
}

func toEntry(s scoresvc.Score) model.LeaderboardEntry {
	name := s.DisplayName
	if name == "" {
		name = s.Principal
	}
	return model.LeaderboardEntry{
		Player:      model.Identity{Principal: s.Principal},
		DisplayName: name,
		GameID:      s.GameID,
		Score:       s.Score,
		SubmittedAt: s.SubmittedAt,
	}
}
