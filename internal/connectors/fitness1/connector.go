package fitness1

import (
	"context"

	"emagsync/internal/logger"
	"emagsync/internal/services/fitness1"
)

// Source is the supplier inventory API.
type Source interface {
	GetProducts(ctx context.Context) (*fitness1.ProductsResponse, error)
}

type Connector struct {
	client Source
	logger *logger.Logger
}

func New(client Source, logger *logger.Logger) *Connector {
	return &Connector{
		client: client,
		logger: logger,
	}
}

// FetchAll pulls the full inventory in one request. A transport error or a
// status other than "ok" is reported as failure with no products.
func (c *Connector) FetchAll(ctx context.Context) (bool, []fitness1.Product) {
	resp, err := c.client.GetProducts(ctx)
	if err != nil {
		c.logger.Error("Fitness1 request failed: %v", err)
		return false, nil
	}
	if resp.Status != "ok" {
		c.logger.Error("Fitness1 answered with status %q", resp.Status)
		return false, nil
	}
	if resp.Skipped > 0 {
		c.logger.Warn("Skipped %d malformed Fitness1 products", resp.Skipped)
	}
	c.logger.Info("Fetched %d Fitness1 products", len(resp.Products))
	return true, resp.Products
}
