package worker

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"emagsync/internal/config"
	"emagsync/internal/logger"
	"emagsync/internal/queue"
	"emagsync/internal/worker/processors"
)

// MessageReader is the consumer side of the run queue.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Worker struct {
	logger    *logger.Logger
	reader    MessageReader
	processor *processors.EventProcessor
	retry     time.Duration
}

func New(cfg *config.Config, logger *logger.Logger, processor *processors.EventProcessor) *Worker {
	return NewWithReader(queue.NewReader(cfg.KafkaBrokers, cfg.SyncTopic, cfg.SyncGroupID), logger, processor)
}

func NewWithReader(reader MessageReader, logger *logger.Logger, processor *processors.EventProcessor) *Worker {
	return &Worker{
		logger:    logger,
		reader:    reader,
		processor: processor,
		retry:     time.Second,
	}
}

// Start consumes run requests one at a time until ctx is cancelled. A
// message is committed once its run has been recorded.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started, listening for run requests...")

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("Failed to read message: %v", err)
			w.wait(ctx)
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))
		if err := w.handle(ctx, message); err != nil {
			w.logger.Error("Failed to process run request: %v", err)
			w.wait(ctx)
			continue
		}

		if err := w.reader.CommitMessages(ctx, message); err != nil {
			w.logger.Error("Failed to commit message: %v", err)
		}
	}
}

// handle returns an error only when the message should be redelivered.
// Malformed messages are logged and dropped.
func (w *Worker) handle(ctx context.Context, message kafka.Message) error {
	req, err := queue.Decode(message.Value)
	if err != nil {
		w.logger.Warn("Dropping message at offset %d: %v", message.Offset, err)
		return nil
	}
	return w.processor.Process(ctx, req)
}

func (w *Worker) wait(ctx context.Context) {
	t := time.NewTimer(w.retry)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.reader.Close()
}
