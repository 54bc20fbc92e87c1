package playtest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/arcadehub/pkg/logger"
)

// SetupLogging initializes the process logger at level, writing to stdout
// and, when logFile is set, to that file as well.
func SetupLogging(level, logFile string) (io.Closer, error) {
	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f
	}
	if err := logger.InitWithFormat("text", out); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := logger.SetLevelString(level); err != nil {
		return nil, err
	}
	return closer, nil
}

// ParseGames splits a comma separated game list. "all" selects every game.
func ParseGames(s string) []string {
	if s == "" || s == "all" {
		return append([]string(nil), AllGames...)
	}
	var out []string
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// ShowHelp prints usage information for the playtest tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Arcade Playtest
===============

Plays the arcade games through the hub API as one player, submits each
final score and checks that the leaderboards reflect it.

Usage:
  go run ./cmd/playtest [options]

Options:
  -hub string
        Base URL of the hub API (default "http://localhost:9080")
  -scoring string
        Base URL of the scoring service (default "http://localhost:9090")
  -player string
        Principal to play as (default "playtest")
  -name string
        Display name to save before playing (default "Playtest Bot")
  -games string
        Comma separated games or "all" (default "all")
  -timeout duration
        HTTP request timeout (default 10s)
  -poll duration
        Poll interval for timed games (default 50ms)
  -log string
        Also write the log to this file
  -verbose
        Log every request

The scoring service must run with dev_tokens enabled. The word scramble
round lasts word_puzzle_seconds on the hub, so a full run takes at least
that long.
`)
}
