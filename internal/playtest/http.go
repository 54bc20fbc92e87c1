package playtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/arcadehub/internal/adapters/http/httpx"
	"github.com/okian/arcadehub/pkg/logger"
)

// StatusError is a non-2xx answer from the hub.
type StatusError struct {
	Status int
	Code   string
	Msg    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hub answered %d %s: %s", e.Status, e.Code, e.Msg)
}

// HTTPClient talks JSON to the hub as one player.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	token   string
	verbose bool
	logger  logger.Logger
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration, verbose bool) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		verbose: verbose,
		logger:  logger.Get().Named("playtest"),
	}
}

// do sends in as JSON when non-nil and decodes a 2xx body into out when non-nil.
// It returns the status code alongside any error.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if c.verbose {
		c.logger.Debug(ctx, "request", logger.String("method", method), logger.String("path", path),
			logger.Int("status", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var e httpx.ErrorResponse
		_ = json.Unmarshal(data, &e)
		return resp.StatusCode, &StatusError{Status: resp.StatusCode, Code: e.Code, Msg: e.Message}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
