package emag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"emagsync/internal/logger"
)

type Client struct {
	baseURL string
	http    *resty.Client
	logger  *logger.Logger
}

// BaseURL expands the marketplace URL template for a locale. Templates
// without a verb are returned unchanged so tests can point at a fake server.
func BaseURL(template, locale string) string {
	if strings.Contains(template, "%s") {
		return strings.TrimRight(fmt.Sprintf(template, locale), "/")
	}
	return strings.TrimRight(template, "/")
}

func NewClient(baseURL, apiKey string, logger *logger.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60*time.Second).
		SetHeader("Authorization", "Basic "+apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		baseURL: baseURL,
		http:    rc,
		logger:  logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ReadProducts fetches one page of product offers.
func (c *Client) ReadProducts(ctx context.Context, page, perPage int) (*Response[ListedProduct], error) {
	body := map[string]int{
		"currentPage":  page,
		"itemsPerPage": perPage,
	}

	var raw Response[json.RawMessage]
	if err := c.post(ctx, "/product_offer/read", body, &raw); err != nil {
		return nil, err
	}

	// Offers are decoded one by one so a single odd record does not cost
	// the whole page.
	out := &Response[ListedProduct]{
		IsError:  raw.IsError,
		Messages: raw.Messages,
		Errors:   raw.Errors,
		Results:  make([]ListedProduct, 0, len(raw.Results)),
	}
	for i, item := range raw.Results {
		var p ListedProduct
		if err := json.Unmarshal(item, &p); err != nil {
			c.logger.Warn("Skipping offer #%d on page %d: %v", i, page, err)
			out.Skipped++
			continue
		}
		out.Results = append(out.Results, p)
	}
	return out, nil
}

// ReadCategory fetches a category with its characteristics.
func (c *Client) ReadCategory(ctx context.Context, id int) (*Response[Category], error) {
	var out Response[Category]
	if err := c.post(ctx, "/category/read", map[string]int{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveProducts posts a batch of offers. The payload is sent as is, so it
// works for both full listings and price updates.
func (c *Client) SaveProducts(ctx context.Context, payload interface{}) (*Response[json.RawMessage], error) {
	var out Response[json.RawMessage]
	if err := c.post(ctx, "/product_offer/save", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	start := time.Now()
	defer c.logger.Duration("emag "+path, start)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	// isError envelopes come back with 4xx codes too, so decode before
	// giving up on the status.
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		if resp.IsError() {
			return fmt.Errorf("API request failed: %d - %s", resp.StatusCode(), resp.String())
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.IsError() {
		if env, ok := out.(interface{ Failed() bool }); ok && env.Failed() {
			c.logger.Warn("eMAG %s answered %d", path, resp.StatusCode())
			return nil
		}
		return fmt.Errorf("API request failed: %d - %s", resp.StatusCode(), resp.String())
	}
	return nil
}
