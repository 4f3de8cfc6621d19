package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"emagsync/internal/logger"
	"emagsync/internal/services/emag"
)

// Generator turns a prompt into model output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Concurrency int
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Failure is a listing that could not be enriched.
type Failure struct {
	ProductID   int    `json:"product_id"`
	EAN         string `json:"ean"`
	Error       string `json:"error"`
	RateLimited bool   `json:"rate_limited"`
}

// Enricher translates listings for another marketplace locale and fills the
// characteristics their category asks for.
type Enricher struct {
	gen    Generator
	opts   Options
	logger *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(gen Generator, opts Options, logger *logger.Logger) *Enricher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	return &Enricher{
		gen:    gen,
		opts:   opts,
		logger: logger,
		sleep:  sleepCtx,
	}
}

var languages = map[string]string{
	"bg": "Bulgarian",
	"ro": "Romanian",
	"hu": "Hungarian",
}

type enrichment struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Characteristics []struct {
		ID    int         `json:"id"`
		Value interface{} `json:"value"`
	} `json:"characteristics"`
}

// Enrich rewrites each product in place. At most Concurrency requests are
// in flight. Products that fail are left untouched and reported in input
// order.
func (e *Enricher) Enrich(ctx context.Context, products []*emag.Product, locale string, categories map[int]emag.Category) []Failure {
	language, ok := languages[locale]
	if !ok {
		language = locale
	}

	errs := make([]error, len(products))
	sem := make(chan struct{}, e.opts.Concurrency)
	var wg sync.WaitGroup

	for i, p := range products {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(i int, p *emag.Product) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = e.enrichOne(ctx, p, language, categories[p.CategoryID])
		}(i, p)
	}
	wg.Wait()

	var failures []Failure
	for i, err := range errs {
		if err == nil {
			continue
		}
		failures = append(failures, Failure{
			ProductID:   products[i].ID,
			EAN:         products[i].EAN,
			Error:       err.Error(),
			RateLimited: IsRateLimit(err),
		})
	}
	e.logger.Info("Enriched %d of %d listings for %s", len(products)-len(failures), len(products), locale)
	return failures
}

func (e *Enricher) enrichOne(ctx context.Context, p *emag.Product, language string, category emag.Category) error {
	out, err := e.generate(ctx, buildPrompt(p, language, category))
	if err != nil {
		e.logger.Warn("Enrichment of listing %d failed: %v", p.ID, err)
		return err
	}

	var result enrichment
	if err := json.Unmarshal([]byte(stripFences(out)), &result); err != nil {
		return fmt.Errorf("failed to parse model output for listing %d: %w", p.ID, err)
	}
	if strings.TrimSpace(result.Name) == "" {
		return fmt.Errorf("model returned no name for listing %d", p.ID)
	}

	allowed := make(map[int]bool, len(category.Characteristics))
	for _, c := range category.Characteristics {
		allowed[c.ID] = true
	}
	var characteristics []emag.Characteristic
	for _, c := range result.Characteristics {
		if c.Value == nil || !allowed[c.ID] {
			continue
		}
		value := strings.TrimSpace(fmt.Sprint(c.Value))
		if value == "" {
			continue
		}
		characteristics = append(characteristics, emag.Characteristic{ID: c.ID, Value: value})
	}

	p.Name = strings.TrimSpace(result.Name)
	if d := strings.TrimSpace(result.Description); d != "" {
		p.Description = d
	}
	p.Characteristics = characteristics
	return nil
}

// generate retries rate-limit errors with exponential backoff. Any other
// error is returned at once.
func (e *Enricher) generate(ctx context.Context, prompt string) (string, error) {
	delay := e.opts.BackoffBase
	for attempt := 0; ; attempt++ {
		out, err := e.gen.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if !IsRateLimit(err) || attempt >= e.opts.MaxRetries {
			return "", err
		}

		e.logger.Debug("Rate limited, retrying in %s (attempt %d)", delay, attempt+1)
		if err := e.sleep(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
		if delay > e.opts.BackoffMax {
			delay = e.opts.BackoffMax
		}
	}
}

func buildPrompt(p *emag.Product, language string, category emag.Category) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate this marketplace product listing into %s.\n", language)
	sb.WriteString("Keep brand names, units and numbers unchanged. Keep HTML tags in the description.\n\n")
	fmt.Fprintf(&sb, "Name: %s\nBrand: %s\nDescription:\n%s\n\n", p.Name, p.Brand, p.Description)

	if len(category.Characteristics) > 0 {
		fmt.Fprintf(&sb, "The listing is in the category %q. Fill in the characteristics below from the product data, in %s. Skip any you cannot tell.\n", category.Name, language)
		for _, c := range category.Characteristics {
			mandatory := ""
			if c.IsMandatory == 1 {
				mandatory = " (mandatory)"
			}
			fmt.Fprintf(&sb, "- id %d: %s%s\n", c.ID, c.Name, mandatory)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`Answer with JSON only: {"name": "...", "description": "...", "characteristics": [{"id": 0, "value": "..."}]}`)
	return sb.String()
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
