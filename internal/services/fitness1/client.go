package fitness1

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"emagsync/internal/logger"
)

type Client struct {
	apiURL string
	apiKey string
	http   *resty.Client
	logger *logger.Logger
}

func NewClient(apiURL, apiKey string, logger *logger.Logger) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		http:   resty.New().SetTimeout(120 * time.Second),
		logger: logger,
	}
}

// GetProducts fetches the whole inventory with descriptions in one call.
func (c *Client) GetProducts(ctx context.Context) (*ProductsResponse, error) {
	start := time.Now()
	defer c.logger.Duration("fitness1 products", start)

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":         c.apiKey,
			"description": "1",
		}).
		Get(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("API request failed: %d - %s", resp.StatusCode(), resp.String())
	}
	return c.decode(resp.Body())
}

// decode reads the envelope and then each product on its own, so one
// malformed record is skipped instead of losing the whole feed. The feed
// does not always label its body as JSON.
func (c *Client) decode(body []byte) (*ProductsResponse, error) {
	var envelope struct {
		Status   string            `json:"status"`
		Products []json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &ProductsResponse{
		Status:   envelope.Status,
		Products: make([]Product, 0, len(envelope.Products)),
	}
	for i, raw := range envelope.Products {
		var p Product
		if err := json.Unmarshal(raw, &p); err != nil {
			c.logger.Warn("Skipping Fitness1 product #%d: %v", i, err)
			out.Skipped++
			continue
		}
		out.Products = append(out.Products, p)
	}
	return out, nil
}
