package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tovren/raidledger/internal/adapters/gateway"
	"github.com/tovren/raidledger/internal/adapters/http/api"
	"github.com/tovren/raidledger/internal/adapters/http/swagger"
	"github.com/tovren/raidledger/internal/adapters/notify"
	"github.com/tovren/raidledger/internal/adapters/repository"
	"github.com/tovren/raidledger/internal/app"
	"github.com/tovren/raidledger/internal/config"
	"github.com/tovren/raidledger/pkg/logger"
	"github.com/tovren/raidledger/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout is generous because the
// updates endpoint holds SSE connections open.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Minute
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(cfg.DBPath)
	if err != nil {
		log.Error(ctx, "failed to open database", logger.String("path", cfg.DBPath), logger.Error(err))
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close database", logger.Error(err))
		}
	}()

	fetcher := gateway.New(cfg.UpstreamBaseURL,
		gateway.WithTimeout(time.Duration(cfg.FetchTimeoutMS)*time.Millisecond),
		gateway.WithConcurrency(cfg.FetchConcurrency),
		gateway.WithDefaultRaidleaderPct(cfg.DefaultRaidleaderPct),
		gateway.WithLogger(log.Named("gateway")),
	)

	broker := notify.NewBroker(
		notify.WithBufferSize(cfg.StreamBufferSize),
		notify.WithLogger(log.Named("notify")),
	)

	svc := app.New(fetcher, store, store, broker,
		app.WithBaseAward(cfg.BaseAward),
		app.WithLogger(log.Named("app")),
	)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)
	mux.Handle("GET /metrics", metrics.Handler())

	apiServer := api.NewServer(svc, broker,
		api.WithStreamHeartbeat(time.Duration(cfg.StreamHeartbeatSeconds)*time.Second),
	)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
