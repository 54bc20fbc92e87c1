package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/arcadehub/internal/adapters/auth"
	"github.com/okian/arcadehub/internal/adapters/http/api"
	"github.com/okian/arcadehub/internal/adapters/http/swagger"
	"github.com/okian/arcadehub/internal/adapters/remote"
	service "github.com/okian/arcadehub/internal/app"
	"github.com/okian/arcadehub/internal/config"
	"github.com/okian/arcadehub/internal/domain/catalog"
	"github.com/okian/arcadehub/pkg/logger"
	"github.com/okian/arcadehub/pkg/metrics"
	"github.com/okian/arcadehub/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	submitWaitSlack           = 2 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if cfg.LogFormat != "text" {
		if err := logger.InitWithFormat(cfg.LogFormat, os.Stdout); err != nil {
			os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
			os.Exit(1)
		}
	}
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint, "arcade-hub")
	if err != nil {
		loggerInstance.Error(ctx, "tracing disabled", logger.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(tctx)
	}()

	hub := newHub(cfg, loggerInstance)
	if err := hub.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start hub", logger.Error(err))
		os.Exit(1)
	}
	defer hub.Stop(context.Background())

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, hub)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr),
			logger.String("scoringURL", cfg.ScoringURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	loggerInstance.Info(ctx, "server stopped")
}

// newHub builds the hub over the remote scoring service named by cfg.
func newHub(cfg *config.Config, l logger.Logger) *service.Hub {
	lo, hi := cfg.ReactionDelays()
	client := remote.NewClient(cfg.ScoringURL,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.SubmitTimeout()}),
		remote.WithLimit(cfg.LeaderboardLimit),
	)
	games := catalog.Default(
		catalog.WithReactionDelays(lo, hi),
		catalog.WithWordPuzzleSeconds(cfg.WordPuzzleSeconds),
		catalog.WithTimerObserver(metrics.RecordTimerCallback),
	)
	return service.New(client,
		service.WithLogger(l.Named("hub")),
		service.WithCatalog(games),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithSubmitTimeout(cfg.SubmitTimeout()),
		service.WithLeaderboardLimit(cfg.LeaderboardLimit),
		service.WithSessionIdle(cfg.SessionIdle()),
	)
}

// newRouter mounts the hub API and its docs.
func newRouter(cfg *config.Config, hub *service.Hub) http.Handler {
	authority := auth.NewAuthority(cfg.JWTSecret,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithTTL(cfg.TokenTTL()),
	)
	r := chi.NewRouter()
	api.NewServer(hub, authority, api.WithSubmitWait(cfg.SubmitTimeout()+submitWaitSlack)).Register(r)
	swagger.Register(r)
	return r
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates hub metrics.
func startServiceMetricsUpdater(ctx context.Context, hub *service.Hub) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(hub)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics copies hub statistics into gauges. GetStats already
// refreshes the queue length.
func updateServiceMetrics(hub *service.Hub) {
	stats := hub.GetStats()
	if sessions, ok := stats["sessions"].(int); ok {
		metrics.UpdateSessionsActive(sessions)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
