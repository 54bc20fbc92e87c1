// Package config defines process configuration for the hub and the scoring service.
//
// Conventions:
// - New() builds a Config with defaults; Load layers a YAML file and env vars on top.
// - Validation errors wrap ErrInvalidConfig; loading errors wrap ErrLoadConfig.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration shared by cmd/ binaries.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr is the hub API listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ScoringAddr is the reference scoring service listen address.
	ScoringAddr string `koanf:"scoring_addr"`

	// ScoringURL is the base URL the hub uses to reach the scoring service.
	ScoringURL string `koanf:"scoring_url"`

	// StoreDriver selects the scoring service storage: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// StorePath is the SQLite database file when StoreDriver is sqlite.
	StorePath string `koanf:"store_path"`

	// JWTSecret signs and verifies HS256 bearer tokens.
	JWTSecret string `koanf:"jwt_secret"`

	// JWTIssuer is the iss claim on issued tokens.
	JWTIssuer string `koanf:"jwt_issuer"`

	// TokenTTLMinutes is the lifetime of issued tokens.
	TokenTTLMinutes int `koanf:"token_ttl_minutes"`

	// DevTokens exposes POST /v1/tokens on the scoring service.
	DevTokens bool `koanf:"dev_tokens"`

	// SubmitTimeoutMS bounds a single remote call.
	SubmitTimeoutMS int `koanf:"submit_timeout_ms"`

	// LeaderboardLimit is the number of rows the leaderboard view displays.
	LeaderboardLimit int `koanf:"leaderboard_limit"`

	// WordPuzzleSeconds is the word scramble round length.
	WordPuzzleSeconds int `koanf:"word_puzzle_seconds"`

	// ReactionMinDelayMS and ReactionMaxDelayMS bound the random arm delay.
	ReactionMinDelayMS int `koanf:"reaction_min_delay_ms"`
	ReactionMaxDelayMS int `koanf:"reaction_max_delay_ms"`

	// SessionIdleMinutes closes sessions without activity for this long.
	SessionIdleMinutes int `koanf:"session_idle_minutes"`

	// WorkerCount sets the number of submission workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the submission dispatch queue.
	QueueSize int `koanf:"queue_size"`

	// OTLPEndpoint enables trace export over OTLP/HTTP when set, e.g. "localhost:4318".
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		ScoringAddr:        ":9090",
		ScoringURL:         "http://localhost:9090",
		StoreDriver:        "memory",
		StorePath:          "arcade.db",
		JWTSecret:          "arcade-dev-secret",
		JWTIssuer:          "arcadehub",
		TokenTTLMinutes:    60,
		DevTokens:          false,
		SubmitTimeoutMS:    5000,
		LeaderboardLimit:   10,
		WordPuzzleSeconds:  60,
		ReactionMinDelayMS: 2000,
		ReactionMaxDelayMS: 5000,
		SessionIdleMinutes: 30,
		WorkerCount:        runtime.NumCPU() * 2,
		QueueSize:          1024,
	}
}

// SubmitTimeout returns SubmitTimeoutMS as a duration.
func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutMS) * time.Millisecond
}

// TokenTTL returns TokenTTLMinutes as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// SessionIdle returns SessionIdleMinutes as a duration.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// ReactionDelays returns the arm delay bounds.
func (c *Config) ReactionDelays() (time.Duration, time.Duration) {
	return time.Duration(c.ReactionMinDelayMS) * time.Millisecond,
		time.Duration(c.ReactionMaxDelayMS) * time.Millisecond
}
