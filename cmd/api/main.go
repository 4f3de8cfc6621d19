package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emagsync/internal/api"
	"emagsync/internal/config"
	"emagsync/internal/database"
	"emagsync/internal/logger"
	"emagsync/internal/pipeline"
	"emagsync/internal/queue"
	"emagsync/internal/scheduler"
	"emagsync/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := store.NewRuns(db.DB)
	catalog := store.NewCatalog(db.DB)
	schedules := store.NewSchedules(db.DB)

	publisher := queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.SyncTopic)
	defer publisher.Close()
	dispatcher := queue.NewDispatcher(runs, publisher, logger)

	runner, release, err := pipeline.NewFromConfig(ctx, cfg, catalog, logger)
	if err != nil {
		logger.Fatal("Failed to initialize runner: %v", err)
	}
	defer release()

	sched := scheduler.New(schedules, dispatcher, cfg.SchedulePoll, logger.With("component", "scheduler"))
	go sched.Run(ctx)

	// Initialize API server
	server := api.New(cfg, logger, api.Services{
		Runs:      runs,
		Enqueuer:  dispatcher,
		Catalog:   catalog,
		Schedules: schedules,
		Trigger:   sched,
		Runner:    runner,
		DB:        db,
	})

	// Start server
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}
