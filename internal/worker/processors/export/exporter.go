package export

import (
	"context"
	"encoding/json"
	"fmt"

	"emagsync/internal/logger"
	"emagsync/internal/metrics"
	"emagsync/internal/pacing"
	"emagsync/internal/services/emag"
)

// Saver is the write side of the marketplace API.
type Saver interface {
	SaveProducts(ctx context.Context, payload interface{}) (*emag.Response[json.RawMessage], error)
}

// Failure describes one batch the marketplace did not accept. Page is the
// marketplace page the batch was built from; zero when the submission did
// not come from a paged read.
type Failure struct {
	Page           int             `json:"page,omitempty"`
	Batch          int             `json:"batch"`
	Payload        json.RawMessage `json:"emag_product_data"`
	Size           int             `json:"size"`
	Messages       []string        `json:"messages"`
	Errors         []string        `json:"errors"`
	TransportError string          `json:"transport_error,omitempty"`
}

// Result aggregates a submission. Succeeded counts items, not batches.
type Result struct {
	Total     int       `json:"total"`
	Batches   int       `json:"batches"`
	Failures  []Failure `json:"failures"`
	Succeeded int       `json:"succeeded"`
}

// Failed is the number of items in failed batches.
func (r Result) Failed() int {
	n := 0
	for _, f := range r.Failures {
		n += f.Size
	}
	return n
}

// OnPage tags every failure with the marketplace page it came from, so
// batch indexes from different pages stay distinguishable.
func (r *Result) OnPage(page int) {
	for i := range r.Failures {
		r.Failures[i].Page = page
	}
}

// Add folds another result into r. Batch indexes stay relative to their
// own submission.
func (r *Result) Add(o Result) {
	r.Total += o.Total
	r.Batches += o.Batches
	r.Succeeded += o.Succeeded
	r.Failures = append(r.Failures, o.Failures...)
}

type Exporter struct {
	saver     Saver
	batchSize int
	pacer     *pacing.Pacer
	logger    *logger.Logger
}

func New(saver Saver, batchSize int, pacer *pacing.Pacer, logger *logger.Logger) *Exporter {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Exporter{
		saver:     saver,
		batchSize: batchSize,
		pacer:     pacer,
		logger:    logger,
	}
}

// Partition splits items into contiguous batches of size; the last one may
// be shorter.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// Records marshals each item on its own so batches can be re-cut and
// stored without knowing the item type.
func Records[T any](items []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		out[i] = raw
	}
	return out, nil
}

// Submit posts records batch by batch. A failed batch is recorded and the
// next one is still sent.
func (e *Exporter) Submit(ctx context.Context, records []json.RawMessage) Result {
	batches := Partition(records, e.batchSize)
	result := Result{Total: len(records), Batches: len(batches)}

	for i, batch := range batches {
		payload, err := json.Marshal(batch)
		if err != nil {
			e.logger.Error("Batch %d (%d items) is not valid JSON: %v", i, len(batch), err)
			result.Failures = append(result.Failures, Failure{
				Batch:          i,
				Size:           len(batch),
				TransportError: err.Error(),
			})
			metrics.RecordBatch(true, len(batch))
			continue
		}

		if err := e.pacer.Wait(ctx); err != nil {
			result.Failures = append(result.Failures, Failure{
				Batch:          i,
				Payload:        payload,
				Size:           len(batch),
				TransportError: err.Error(),
			})
			metrics.RecordBatch(true, len(batch))
			continue
		}

		resp, err := e.saver.SaveProducts(ctx, batch)
		switch {
		case err != nil:
			e.logger.Error("Batch %d (%d items) failed: %v", i, len(batch), err)
			result.Failures = append(result.Failures, Failure{
				Batch:          i,
				Payload:        payload,
				Size:           len(batch),
				TransportError: err.Error(),
			})
		case resp.IsError:
			e.logger.Warn("Batch %d (%d items) rejected: messages=%v errors=%v",
				i, len(batch), resp.Messages.Strings(), resp.Errors.Strings())
			result.Failures = append(result.Failures, Failure{
				Batch:    i,
				Payload:  payload,
				Size:     len(batch),
				Messages: resp.Messages.Strings(),
				Errors:   resp.Errors.Strings(),
			})
		default:
			e.logger.Debug("Batch %d (%d items) accepted", i, len(batch))
		}

		metrics.RecordBatch(err != nil || (resp != nil && resp.IsError), len(batch))
	}

	result.Succeeded = result.Total - result.Failed()
	e.logger.Info("Submitted %d items in %d batches, %d succeeded", result.Total, result.Batches, result.Succeeded)
	return result
}
