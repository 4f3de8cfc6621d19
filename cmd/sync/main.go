// Command sync runs one catalog workflow in the foreground and prints its
// summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emagsync/internal/config"
	"emagsync/internal/database"
	"emagsync/internal/logger"
	"emagsync/internal/models"
	"emagsync/internal/pipeline"
	"emagsync/internal/store"
)

func main() {
	var (
		action    = flag.String("action", "create", "workflow to run: create, update or locale")
		locale    = flag.String("locale", "", "marketplace locale, defaults to EMAG_LOCALE")
		pause     = flag.Float64("pause", 0, "seconds between external calls, defaults to PAUSE")
		batchSize = flag.Int("batch-size", 0, "offers per save request, defaults to BATCH_SIZE")
		threshold = flag.Float64("threshold", 0, "category match threshold 0-100, defaults to MATCH_THRESHOLD")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	logger := logger.New(cfg.LogLevel)

	a, err := pipeline.ParseAction(*action)
	if err != nil {
		logger.Fatal("%v", err)
	}
	opts := pipeline.Options{Action: a, Locale: *locale, Pause: *pause, BatchSize: *batchSize, Threshold: *threshold}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Without a database the built-in categories apply and the run is not
	// recorded.
	var (
		catalog pipeline.Catalog
		runs    *store.Runs
	)
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Warn("Database unavailable, using built-in categories: %v", err)
	} else {
		defer db.Close()
		catalog = store.NewCatalog(db.DB)
		runs = store.NewRuns(db.DB)
	}

	runner, release, err := pipeline.NewFromConfig(ctx, cfg, catalog, logger)
	if err != nil {
		logger.Fatal("Failed to initialize runner: %v", err)
	}
	defer release()

	var run *models.SyncRun
	if runs != nil {
		if run, err = runs.Create(ctx, string(a), models.RunTriggerCLI, opts); err != nil {
			logger.Warn("Run will not be recorded: %v", err)
		} else if _, err := runs.Start(ctx, run.ID, time.Now()); err != nil {
			logger.Warn("Failed to mark run %s started: %v", run.ID, err)
		}
	}

	summary, runErr := runner.Run(ctx, opts)

	if run != nil {
		bg := context.WithoutCancel(ctx)
		if err := runs.Finish(bg, run.ID, summary, summary.Failures, runErr, time.Now()); err != nil {
			logger.Warn("Failed to record run %s: %v", run.ID, err)
			if err := runs.Fail(bg, run.ID, err, time.Now()); err != nil {
				logger.Warn("Failed to mark run %s failed: %v", run.ID, err)
			}
		}
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode summary: %v", err)
	}
	fmt.Println(string(out))

	if runErr != nil {
		logger.Error("Run failed: %v", runErr)
		os.Exit(1)
	}
}
