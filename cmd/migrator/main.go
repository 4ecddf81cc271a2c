package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mbathio/university-management/internal/config"
	"github.com/mbathio/university-management/internal/database"
	"github.com/mbathio/university-management/internal/log"
)

func main() {
	command := flag.String("command", "up", "migration command: up, down, status or redo")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := database.Migrate(ctx, cfg.Postgres.DSN, *command); err != nil {
		logger.Fatal().Err(err).Str("command", *command).Msg("migration failed")
	}
	logger.Info().Str("command", *command).Msg("migrations applied")
}
