package emag

import (
	"context"

	"emagsync/internal/logger"
	"emagsync/internal/pacing"
	"emagsync/internal/services/emag"
)

// Reader is the read side of the marketplace API.
type Reader interface {
	ReadProducts(ctx context.Context, page, perPage int) (*emag.Response[emag.ListedProduct], error)
	ReadCategory(ctx context.Context, id int) (*emag.Response[emag.Category], error)
}

type Connector struct {
	client  Reader
	pacer   *pacing.Pacer
	perPage int
	logger  *logger.Logger
}

func New(client Reader, pacer *pacing.Pacer, perPage int, logger *logger.Logger) *Connector {
	if perPage <= 0 {
		perPage = 100
	}
	return &Connector{
		client:  client,
		pacer:   pacer,
		perPage: perPage,
		logger:  logger,
	}
}

// FetchAll reads every page of offers. Pagination stops at the first empty
// page or transport error; a page whose offers were all malformed is not
// empty. Pages flagged isError are kept but make the result unsuccessful.
func (c *Connector) FetchAll(ctx context.Context) (bool, []emag.ListedProduct) {
	var all []emag.ListedProduct
	ok := c.Stream(ctx, func(page int, items []emag.ListedProduct) error {
		all = append(all, items...)
		return nil
	})
	c.logger.Info("Fetched %d eMAG products", len(all))
	return ok, all
}

// Stream hands each non-empty page to fn as it arrives. An error from fn
// stops the stream and makes it unsuccessful.
func (c *Connector) Stream(ctx context.Context, fn func(page int, items []emag.ListedProduct) error) bool {
	success := true
	for page := 1; ; page++ {
		if err := c.pacer.Wait(ctx); err != nil {
			c.logger.Warn("eMAG pagination interrupted before page %d: %v", page, err)
			return false
		}

		resp, err := c.client.ReadProducts(ctx, page, c.perPage)
		if err != nil {
			c.logger.Error("Request for eMAG page %d failed: %v", page, err)
			return false
		}
		if resp.IsError {
			c.logger.Warn("eMAG page %d reported errors: messages=%v errors=%v",
				page, resp.Messages.Strings(), resp.Errors.Strings())
			success = false
		}
		if resp.Skipped > 0 {
			c.logger.Warn("eMAG page %d: skipped %d malformed offers", page, resp.Skipped)
		}
		if len(resp.Results) == 0 {
			if resp.Skipped > 0 {
				continue
			}
			c.logger.Debug("eMAG page %d is empty, done", page)
			return success
		}

		if err := fn(page, resp.Results); err != nil {
			c.logger.Error("Processing eMAG page %d failed: %v", page, err)
			return false
		}
	}
}

// FetchCategories reads the given categories one by one. A transport error
// or an empty answer ends the loop.
func (c *Connector) FetchCategories(ctx context.Context, ids []int) (bool, []emag.Category) {
	var categories []emag.Category
	for _, id := range ids {
		if err := c.pacer.Wait(ctx); err != nil {
			c.logger.Warn("Category fetch interrupted before %d: %v", id, err)
			return false, categories
		}

		resp, err := c.client.ReadCategory(ctx, id)
		if err != nil {
			c.logger.Error("Request for category %d failed: %v", id, err)
			return false, categories
		}
		if resp.IsError {
			c.logger.Warn("Category %d reported errors: messages=%v errors=%v",
				id, resp.Messages.Strings(), resp.Errors.Strings())
		}
		if len(resp.Results) == 0 {
			c.logger.Warn("No data for category %d", id)
			return false, categories
		}
		categories = append(categories, resp.Results...)
	}
	c.logger.Info("Fetched %d eMAG categories", len(categories))
	return true, categories
}
