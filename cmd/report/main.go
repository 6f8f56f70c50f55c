package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/config"
	"github.com/skridlevsky/membership-tracker/internal/db"
	"github.com/skridlevsky/membership-tracker/internal/logging"
	"github.com/skridlevsky/membership-tracker/internal/platform"
	"github.com/skridlevsky/membership-tracker/internal/tables"
	"github.com/skridlevsky/membership-tracker/internal/tracker"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	opts, err := tracker.OptionsFromConfig(cfg)
	if err != nil {
		logger.Fatal("Configuration error", zap.Error(err))
	}

	// SIGINT/SIGTERM cancel in-flight requests; the run is still recorded as failed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewPostgres(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, database.Pool(), logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	store := tables.NewStore(database.Pool(), logger)
	session := platform.NewSession(
		cfg.PlatformBaseURL,
		cfg.AuthToken,
		platform.NewTeamCache(cfg.TeamCacheTTL),
		logger.Named("platform"),
	)

	logger.Info("Starting membership run",
		zap.Int("teams", len(opts.TeamIDs)),
		zap.String("table", opts.MemberTableName),
		zap.Bool("update_table", opts.UpdateTable),
	)

	run, err := tracker.New(session, store, opts, logger).Run(ctx)
	if err != nil {
		// Fatal skips deferred calls
		database.Close()
		logger.Fatal("Membership run failed", zap.Error(err))
	}

	logger.Info("Membership run complete",
		zap.String("run_id", run.ID.String()),
		zap.Int("members", run.Members),
		zap.Int("added", run.Added),
		zap.Int("removed", run.Removed),
		zap.Bool("table_updated", run.TableUpdated),
	)
}
