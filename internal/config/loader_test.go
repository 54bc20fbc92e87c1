package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/arcadehub/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.ScoringAddr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 10)
				convey.So(cfg.WordPuzzleSeconds, convey.ShouldEqual, 60)
				convey.So(cfg.DevTokens, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ARCADE_ADDR", ":8080")
			_ = os.Setenv("ARCADE_QUEUE_SIZE", "64")
			_ = os.Setenv("ARCADE_WORKER_COUNT", "3")
			_ = os.Setenv("ARCADE_DEV_TOKENS", "true")
			_ = os.Setenv("ARCADE_REACTION_MIN_DELAY_MS", "10")
			_ = os.Setenv("ARCADE_REACTION_MAX_DELAY_MS", "20")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.DevTokens, convey.ShouldBeTrue)
				lo, hi := cfg.ReactionDelays()
				convey.So(lo, convey.ShouldEqual, 10*time.Millisecond)
				convey.So(hi, convey.ShouldEqual, 20*time.Millisecond)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":7070"
store_driver: sqlite
store_path: /tmp/arcade-test.db
leaderboard_limit: 5
session_idle_minutes: 2
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("ARCADE_CONFIG", tmpFile)
			_ = os.Setenv("ARCADE_LEADERBOARD_LIMIT", "7")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.StorePath, convey.ShouldEqual, "/tmp/arcade-test.db")
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 7)
				convey.So(cfg.SessionIdle(), convey.ShouldEqual, 2*time.Minute)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("ARCADE_CONFIG", "/non/existent/arcade.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then it fails with a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an env var is not a number", func() {
			_ = os.Setenv("ARCADE_QUEUE_SIZE", "lots")

			_, err := config.Load(ctx)

			convey.Convey("Then it fails with a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the address is cleared", func() {
			_ = os.Setenv("ARCADE_ADDR", "")

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New()
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		cases := map[string]func(c *config.Config){
			"store_driver":         func(c *config.Config) { c.StoreDriver = "postgres" },
			"store_path":           func(c *config.Config) { c.StoreDriver = "sqlite"; c.StorePath = "" },
			"jwt_secret":           func(c *config.Config) { c.JWTSecret = "" },
			"token_ttl_minutes":    func(c *config.Config) { c.TokenTTLMinutes = 0 },
			"submit_timeout_ms":    func(c *config.Config) { c.SubmitTimeoutMS = -1 },
			"leaderboard_limit":    func(c *config.Config) { c.LeaderboardLimit = 0 },
			"word_puzzle_seconds":  func(c *config.Config) { c.WordPuzzleSeconds = 0 },
			"reaction delays":      func(c *config.Config) { c.ReactionMaxDelayMS = c.ReactionMinDelayMS },
			"session_idle_minutes": func(c *config.Config) { c.SessionIdleMinutes = 0 },
			"worker_count":         func(c *config.Config) { c.WorkerCount = 0 },
			"queue_size":           func(c *config.Config) { c.QueueSize = -5 },
			"addr":                 func(c *config.Config) { c.Addr = "" },
		}
		for want, mutate := range cases {
			c := config.New()
			mutate(c)
			err := c.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, want)
		}
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "arcade-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}
