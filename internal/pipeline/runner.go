// Package pipeline runs the create, update and locale workflows end to end
// and reports each run as a Summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emagsync/internal/config"
	emagconn "emagsync/internal/connectors/emag"
	fitness1conn "emagsync/internal/connectors/fitness1"
	"emagsync/internal/logger"
	"emagsync/internal/metrics"
	"emagsync/internal/pacing"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
	"emagsync/internal/worker/processors/ai"
	"emagsync/internal/worker/processors/export"
	"emagsync/internal/worker/processors/validation"
)

var (
	// ErrMarketplaceFetch ends a create run whose listing fetch failed.
	ErrMarketplaceFetch = errors.New("marketplace fetch failed")
	ErrUnknownAction    = errors.New("unknown action")
	ErrNoEnricher       = errors.New("enrichment is not configured")
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionLocale Action = "locale"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionCreate, ActionUpdate, ActionLocale:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Options tune a single run. Zero values fall back to the configuration.
type Options struct {
	Action Action `json:"action"`
	Locale string `json:"locale,omitempty"`
	// Pause between external calls, in seconds.
	Pause     float64 `json:"pause,omitempty"`
	BatchSize int     `json:"batch_size,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

func (o Options) pause() time.Duration {
	return time.Duration(o.Pause * float64(time.Second))
}

// Marketplace is the marketplace API of one locale.
type Marketplace interface {
	emagconn.Reader
	export.Saver
}

// Catalog holds the operator-maintained category tables. Empty results fall
// back to the built-in defaults.
type Catalog interface {
	AllowedCategories(ctx context.Context) (names []string, keywords map[string][]string, err error)
	MappingOverrides(ctx context.Context) (map[string]string, error)
}

type Enricher interface {
	Enrich(ctx context.Context, products []*emag.Product, locale string, categories map[int]emag.Category) []ai.Failure
}

type Runner struct {
	cfg         *config.Config
	marketplace func(locale string) Marketplace
	supplier    fitness1conn.Source
	catalog     Catalog
	enricher    Enricher
	validator   *validation.Validator
	logger      *logger.Logger
}

// New wires a runner. catalog and enricher may be nil; without an enricher
// locale runs fail with ErrNoEnricher.
func New(
	cfg *config.Config,
	marketplace func(locale string) Marketplace,
	supplier fitness1conn.Source,
	catalog Catalog,
	enricher Enricher,
	logger *logger.Logger,
) *Runner {
	return &Runner{
		cfg:         cfg,
		marketplace: marketplace,
		supplier:    supplier,
		catalog:     catalog,
		enricher:    enricher,
		validator:   validation.New(logger),
		logger:      logger,
	}
}

// Run dispatches on opts.Action and records the outcome in the run metrics.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	start := time.Now()

	var (
		summary Summary
		err     error
	)
	switch opts.Action {
	case ActionCreate:
		summary, err = r.Create(ctx, opts)
	case ActionUpdate:
		summary, err = r.Update(ctx, opts)
	case ActionLocale:
		summary, err = r.CreateLocale(ctx, opts)
	default:
		return Summary{Action: opts.Action}, fmt.Errorf("%w: %q", ErrUnknownAction, opts.Action)
	}

	status := "succeeded"
	switch {
	case err != nil:
		status = "failed"
	case summary.Aborted || summary.Failed > 0:
		status = "partial"
	}
	metrics.RecordRun(string(opts.Action), status, time.Since(start))
	return summary, err
}

func (r *Runner) withDefaults(opts Options) Options {
	if opts.Locale == "" {
		opts.Locale = r.cfg.EmagLocale
	}
	if opts.Pause <= 0 {
		opts.Pause = r.cfg.Pause.Seconds()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = r.cfg.BatchSize
	}
	if opts.Threshold <= 0 {
		opts.Threshold = r.cfg.MatchThreshold
	}
	return opts
}

// session is the per-run wiring of clients, pacing and logging.
type session struct {
	opts        Options
	log         *logger.Logger
	client      Marketplace
	marketplace *emagconn.Connector
	supplier    *fitness1conn.Connector
	exporter    *export.Exporter
	transformer *fitness1.Transformer
}

func (r *Runner) session(opts Options) *session {
	opts = r.withDefaults(opts)
	log := r.logger.With("action", string(opts.Action)).With("locale", opts.Locale)
	pacer := pacing.New(opts.pause())
	client := r.marketplace(opts.Locale)

	return &session{
		opts:        opts,
		log:         log,
		client:      client,
		marketplace: emagconn.New(client, pacer, r.cfg.ItemsPerPage, log),
		supplier:    fitness1conn.New(r.supplier, log),
		exporter:    export.New(client, opts.BatchSize, pacer, log),
		transformer: fitness1.NewTransformer(r.cfg.PartNumberPrefix, r.cfg.VATID(opts.Locale)),
	}
}

// validSupplier drops supplier products missing a barcode or a usable
// price.
func (r *Runner) validSupplier(products []fitness1.Product, summary *Summary) []fitness1.Product {
	valid := make([]fitness1.Product, 0, len(products))
	for _, p := range products {
		if err := r.validator.ValidateSupplier(p); err != nil {
			summary.SkippedProducts++
			continue
		}
		valid = append(valid, p)
	}
	return valid
}
