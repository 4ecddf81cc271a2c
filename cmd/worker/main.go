package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbathio/university-management/internal/cache"
	"github.com/mbathio/university-management/internal/config"
	"github.com/mbathio/university-management/internal/database"
	"github.com/mbathio/university-management/internal/log"
	"github.com/mbathio/university-management/internal/repository"
	"github.com/mbathio/university-management/internal/storage"
	"github.com/mbathio/university-management/internal/worker/queue"
	"github.com/mbathio/university-management/internal/worker/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	files, err := storage.NewFileStore(storage.Options{
		Root:     cfg.Upload.Root,
		MaxBytes: cfg.Upload.MaxBytes,
		Bucketed: cfg.Upload.Bucketed,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open upload root")
	}

	var mirror tasks.Mirror
	if cfg.Mirror.Enabled {
		objectStore, err := storage.NewObjectStore(cfg.Mirror)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Fatal().Err(err).Msg("ensure bucket failed")
		}
		mirror = objectStore
	}

	processor := tasks.NewProcessor(repository.NewNotificationRepository(dbPool), files, mirror, logger)
	consumer := queue.NewConsumer(client, queue.Options{
		Stream:        cfg.Redis.Stream,
		Group:         cfg.Redis.Group,
		Consumer:      cfg.Redis.Consumer,
		ClaimInterval: cfg.Worker.ClaimInterval,
	}, logger, processor)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("worker exited cleanly")
}
