package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mbathio/university-management/internal/cache"
	"github.com/mbathio/university-management/internal/config"
	"github.com/mbathio/university-management/internal/database"
	"github.com/mbathio/university-management/internal/events"
	"github.com/mbathio/university-management/internal/handlers"
	"github.com/mbathio/university-management/internal/jobs"
	"github.com/mbathio/university-management/internal/log"
	"github.com/mbathio/university-management/internal/policy"
	"github.com/mbathio/university-management/internal/ratelimit"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/security"
	"github.com/mbathio/university-management/internal/server"
	"github.com/mbathio/university-management/internal/service"
	"github.com/mbathio/university-management/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	checks := []handlers.HealthCheck{{Name: "database", Ping: dbPool.Ping}}

	var publisher events.Publisher
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, document events disabled")
	} else {
		publisher = events.NewRedisPublisher(redisClient, cfg.Redis.Stream)
		checks = append(checks, handlers.HealthCheck{
			Name: "cache",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	if cfg.Mirror.Enabled {
		mirror, err := storage.NewObjectStore(cfg.Mirror)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		checks = append(checks, handlers.HealthCheck{Name: "object_store", Ping: mirror.Ping})
	}

	files, err := storage.NewFileStore(storage.Options{
		Root:     cfg.Upload.Root,
		MaxBytes: cfg.Upload.MaxBytes,
		Bucketed: cfg.Upload.Bucketed,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open upload root")
	}

	tokens, err := security.NewTokenService(security.TokenConfig{
		Secret:      cfg.Security.JWTSecret,
		AccessTTL:   cfg.Security.JWTAccessTTL,
		RefreshTTL:  cfg.Security.JWTRefreshTTL,
		NoncePrefix: cfg.Security.NoncePrefix,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init token service")
	}

	guard := ratelimit.New(cfg.RateLimit.Threshold, cfg.RateLimit.Window)

	authService := service.NewAuthService(repository.NewPrincipalRepository(dbPool), tokens, guard, logger)
	documentService := service.NewDocumentService(repository.NewDocumentRepository(dbPool), files, publisher, logger)

	table := policy.Default()
	table.Register(policy.DocumentCreator, documentService.IsCreator)

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:            logger,
		Environment:    cfg.Environment,
		Auth:           authService,
		Documents:      documentService,
		Table:          table,
		MaxUploadBytes: files.MaxBytes(),
		Checks:         checks,
	})
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http server")
	}

	scheduler := jobs.NewScheduler(logger)
	if err := scheduler.AddGuardSweep(cfg.RateLimit.SweepSchedule, guard); err != nil {
		logger.Fatal().Err(err).Msg("scheduler setup failed")
	}
	scheduler.Start()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
