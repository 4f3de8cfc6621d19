package pipeline

import (
	"context"

	"emagsync/internal/config"
	"emagsync/internal/logger"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
	"emagsync/internal/worker/processors/ai"
)

// NewFromConfig wires a runner against the live marketplace and supplier
// APIs. Locale runs are only available when a Gemini key is configured.
// The returned function releases the enrichment client.
func NewFromConfig(ctx context.Context, cfg *config.Config, catalog Catalog, log *logger.Logger) (*Runner, func(), error) {
	marketplace := func(locale string) Marketplace {
		return emag.NewClient(emag.BaseURL(cfg.EmagURL, locale), cfg.EmagAPIKey, log)
	}
	supplier := fitness1.NewClient(cfg.Fitness1APIURL, cfg.Fitness1APIKey, log)

	release := func() {}
	var enricher Enricher
	if cfg.GeminiAPIKey != "" {
		gen, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, release, err
		}
		release = gen.Close
		enricher = ai.New(gen, ai.Options{
			Concurrency: cfg.EnrichConcurrency,
			MaxRetries:  cfg.EnrichMaxRetries,
			BackoffMax:  cfg.EnrichBackoffMax,
		}, log.With("component", "enricher"))
	} else {
		log.Warn("GEMINI_API_KEY not set, locale runs are disabled")
	}

	return New(cfg, marketplace, supplier, catalog, enricher, log), release, nil
}
