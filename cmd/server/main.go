package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/skridlevsky/membership-tracker/internal/api"
	"github.com/skridlevsky/membership-tracker/internal/config"
	"github.com/skridlevsky/membership-tracker/internal/db"
	"github.com/skridlevsky/membership-tracker/internal/logging"
	"github.com/skridlevsky/membership-tracker/internal/tables"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.NewPostgres(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	// NOTE: database.Close() called explicitly in shutdown sequence below, no defer

	if err := db.RunMigrations(ctx, database.Pool(), logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	store := tables.NewStore(database.Pool(), logger)

	routerResult := api.NewRouter(&api.RouterConfig{
		Database:       database,
		Store:          store,
		ReportFolderID: cfg.ReportFolderID,
		Env:            cfg.Env,
		Log:            logger.Named("http"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routerResult.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	routerResult.RateLimiters.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	database.Close()
	logger.Info("Server exited")
}
