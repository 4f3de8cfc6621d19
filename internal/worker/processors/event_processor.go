package processors

import (
	"context"
	"fmt"
	"time"

	"emagsync/internal/logger"
	"emagsync/internal/pipeline"
	"emagsync/internal/queue"
)

type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (pipeline.Summary, error)
}

// RunStore is the part of the run status store the processor updates.
type RunStore interface {
	Start(ctx context.Context, id string, at time.Time) (bool, error)
	Finish(ctx context.Context, id string, summary, failures interface{}, runErr error, at time.Time) error
	Fail(ctx context.Context, id string, runErr error, at time.Time) error
}

type EventProcessor struct {
	runner Runner
	runs   RunStore
	logger *logger.Logger
}

func NewEventProcessor(runner Runner, runs RunStore, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		runner: runner,
		runs:   runs,
		logger: logger,
	}
}

// Process executes one queued run and stores its summary. Run failures are
// recorded on the run, not returned. When the summary cannot be stored the
// run is marked failed instead, so a redelivery does not find it stuck in
// running; only when that also fails is the error returned.
func (ep *EventProcessor) Process(ctx context.Context, req queue.RunRequest) error {
	log := ep.logger.With("run_id", req.RunID)

	started, err := ep.runs.Start(ctx, req.RunID, time.Now())
	if err != nil {
		return err
	}
	if !started {
		log.Info("Run already picked up, skipping redelivery")
		return nil
	}

	opts := req.Options
	opts.Action = req.Action

	log.Info("Starting %s run", opts.Action)
	summary, runErr := ep.runner.Run(ctx, opts)
	if runErr != nil {
		log.Error("Run failed at %s: %v", summary.Stage, runErr)
	} else {
		log.Info("Run finished: %d submitted, %d succeeded, %d failed",
			summary.Submitted, summary.Succeeded, summary.Failed)
	}

	store := context.WithoutCancel(ctx)
	if err := ep.runs.Finish(store, req.RunID, summary, summary.Failures, runErr, time.Now()); err != nil {
		err = fmt.Errorf("failed to store result of run %s: %w", req.RunID, err)
		if failErr := ep.runs.Fail(store, req.RunID, err, time.Now()); failErr != nil {
			log.Error("Failed to mark run failed: %v", failErr)
			return err
		}
		log.Error("%v; run marked failed", err)
	}
	return nil
}
