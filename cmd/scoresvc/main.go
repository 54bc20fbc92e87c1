// Command scoresvc runs the reference scoring service the hub submits to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/arcadehub/internal/adapters/auth"
	"github.com/okian/arcadehub/internal/adapters/http/scoresvc"
	"github.com/okian/arcadehub/internal/adapters/repository"
	"github.com/okian/arcadehub/internal/config"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(); err != nil {
		logger.Get().Error(context.Background(), "scoring service failed", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if cfg.LogFormat != "text" {
		if err := logger.InitWithFormat(cfg.LogFormat, os.Stdout); err != nil {
			return err
		}
	}
	log := logger.Get().Named("scoresvc")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, "arcade-scoresvc")
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "store close failed", logger.Error(err))
		}
	}()

	authority := auth.NewAuthority(cfg.JWTSecret,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithTTL(cfg.TokenTTL()),
	)
	api := scoresvc.NewServer(store, authority,
		scoresvc.WithDevTokens(cfg.DevTokens),
		scoresvc.WithLogger(log),
	)
	srv := &http.Server{
		Addr:              cfg.ScoringAddr,
		Handler:           api.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting scoring service", logger.String("addr", cfg.ScoringAddr),
			logger.String("store", cfg.StoreDriver), logger.Bool("devTokens", cfg.DevTokens))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info(ctx, "scoring service stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		s, err := repository.OpenSQLite(ctx, cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return repository.NewTreapStore(ctx), nil
	}
}
