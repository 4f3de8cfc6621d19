package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"emagsync/internal/config"
	"emagsync/internal/database"
	"emagsync/internal/logger"
	"emagsync/internal/pipeline"
	"emagsync/internal/store"
	"emagsync/internal/worker"
	"emagsync/internal/worker/processors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, release, err := pipeline.NewFromConfig(ctx, cfg, store.NewCatalog(db.DB), logger)
	if err != nil {
		logger.Fatal("Failed to initialize runner: %v", err)
	}
	defer release()

	// Initialize worker
	processor := processors.NewEventProcessor(runner, store.NewRuns(db.DB), logger)
	w := worker.New(cfg, logger, processor)

	// Start worker
	logger.Info("Starting worker...")
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-done
	w.Stop()
}
