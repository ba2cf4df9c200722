package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/packlist-backend/api/routes"
	"github.com/angelmondragon/packlist-backend/internal/packs"
	"github.com/angelmondragon/packlist-backend/pkg/auth/session"
	"github.com/angelmondragon/packlist-backend/pkg/config"
	"github.com/angelmondragon/packlist-backend/pkg/db"
	"github.com/angelmondragon/packlist-backend/pkg/logger"
	"github.com/angelmondragon/packlist-backend/pkg/metrics"
	"github.com/angelmondragon/packlist-backend/pkg/migrate"
	"github.com/angelmondragon/packlist-backend/pkg/outbox"
	"github.com/angelmondragon/packlist-backend/pkg/redis"
	"github.com/angelmondragon/packlist-backend/pkg/saga"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Without Redis, tokens are checked by signature and expiry only and
	// Idempotency-Key headers are ignored.
	var redisClient *redis.Client
	var sessions session.AccessSessionChecker
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()

		manager, err := session.NewManager(redisClient, cfg.JWT)
		if err != nil {
			logg.Error(context.Background(), "failed to create session manager", err)
			os.Exit(1)
		}
		sessions = manager
	} else {
		logg.Warn(context.Background(), "redis not configured, session revocation and idempotency disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	runner, err := saga.NewRunner(dbClient, metrics.NewSagaMetrics(registry), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create saga runner", err)
		os.Exit(1)
	}

	packService, err := packs.NewService(packs.ServiceParams{
		Repo:            packs.NewRepository(dbClient.DB()),
		Runner:          runner,
		Outbox:          outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Logger:          logg,
		SitemapBasePath: cfg.Sitemap.BasePath,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pack service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, registry, dbClient, redisClient, sessions, packService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
