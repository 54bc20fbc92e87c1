// Command playtest plays every arcade game through a running hub and checks
// the submitted scores reach the leaderboards.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/okian/arcadehub/internal/playtest"
)

// Default configuration constants.
const (
	defaultTimeout     = 10 * time.Second
	defaultPoll        = 50 * time.Millisecond
	defaultTestTimeout = 5 * time.Minute
)

func main() {
	var (
		hubURL     = flag.String("hub", "http://localhost:9080", "Base URL of the hub API")
		scoringURL = flag.String("scoring", "http://localhost:9090", "Base URL of the scoring service")
		player     = flag.String("player", "playtest", "Principal to play as")
		name       = flag.String("name", "Playtest Bot", "Display name to save before playing")
		games      = flag.String("games", "all", "Comma separated games or \"all\"")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		poll       = flag.Duration("poll", defaultPoll, "Poll interval for timed games")
		logFile    = flag.String("log", "", "Also write the log to this file")
		verbose    = flag.Bool("verbose", false, "Log every request")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		playtest.ShowHelp(os.Stdout)
		return
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	closer, err := playtest.SetupLogging(level, *logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	stats, err := playtest.Run(ctx, &playtest.Config{
		HubURL:       *hubURL,
		ScoringURL:   *scoringURL,
		Principal:    *player,
		DisplayName:  *name,
		Games:        playtest.ParseGames(*games),
		Timeout:      *timeout,
		PollInterval: *poll,
		Verbose:      *verbose,
	})
	for _, r := range stats.Results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Printf("%-15s score=%-6d best=%-6d rank=%-3d %s\n", r.GameID, r.Score, r.Best, r.Rank, status)
	}
	if err != nil {
		os.Stderr.WriteString("Playtest failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
