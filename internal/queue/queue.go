// Package queue carries run requests from the API and the scheduler to the
// worker over Kafka.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"emagsync/internal/logger"
	"emagsync/internal/models"
	"emagsync/internal/pipeline"
)

const TypeRunRequested = "run.requested"

// RunRequest is the message the worker consumes.
type RunRequest struct {
	Type      string           `json:"type"`
	RunID     string           `json:"run_id"`
	Action    pipeline.Action  `json:"action"`
	Options   pipeline.Options `json:"options"`
	Timestamp time.Time        `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, req RunRequest) error
}

// KafkaPublisher writes run requests keyed by run id.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(splitBrokers(brokers)...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, req RunRequest) error {
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode run request: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(req.RunID), Value: value}); err != nil {
		return fmt.Errorf("failed to publish run %s: %w", req.RunID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewReader is the consumer side used by the worker.
func NewReader(brokers, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        splitBrokers(brokers),
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
}

// Decode parses a queue message.
func Decode(value []byte) (RunRequest, error) {
	var req RunRequest
	if err := json.Unmarshal(value, &req); err != nil {
		return RunRequest{}, fmt.Errorf("failed to parse run request: %w", err)
	}
	if req.Type != TypeRunRequested {
		return RunRequest{}, fmt.Errorf("unexpected message type %q", req.Type)
	}
	if req.RunID == "" {
		return RunRequest{}, fmt.Errorf("run request without run_id")
	}
	return req, nil
}

// RunStore is the part of the run status store the dispatcher needs.
type RunStore interface {
	Create(ctx context.Context, action string, trigger models.RunTrigger, parameters interface{}) (*models.SyncRun, error)
	Fail(ctx context.Context, id string, runErr error, at time.Time) error
}

// Dispatcher records a pending run and queues it.
type Dispatcher struct {
	runs      RunStore
	publisher Publisher
	logger    *logger.Logger
}

func NewDispatcher(runs RunStore, publisher Publisher, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		runs:      runs,
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue stores the run and publishes it. A run that could not be
// published is marked failed and the error returned.
func (d *Dispatcher) Enqueue(ctx context.Context, opts pipeline.Options, trigger models.RunTrigger) (*models.SyncRun, error) {
	if _, err := pipeline.ParseAction(string(opts.Action)); err != nil {
		return nil, err
	}

	run, err := d.runs.Create(ctx, string(opts.Action), trigger, opts)
	if err != nil {
		return nil, err
	}

	req := RunRequest{
		Type:      TypeRunRequested,
		RunID:     run.ID,
		Action:    opts.Action,
		Options:   opts,
		Timestamp: time.Now().UTC(),
	}
	if err := d.publisher.Publish(ctx, req); err != nil {
		d.logger.Error("Queueing run %s failed: %v", run.ID, err)
		if ferr := d.runs.Fail(ctx, run.ID, err, time.Now()); ferr != nil {
			d.logger.Error("Marking run %s failed: %v", run.ID, ferr)
		}
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		return run, err
	}

	d.logger.Info("Queued %s run %s (%s)", opts.Action, run.ID, trigger)
	return run, nil
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
