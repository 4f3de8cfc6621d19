package handlers

import (
	"context"
	"net/http"

	"emagsync/internal/logger"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"

	"github.com/gin-gonic/gin"
)

// Browser reads both catalogs without changing anything.
type Browser interface {
	SupplierProducts(ctx context.Context) ([]fitness1.Product, error)
	MarketplaceProducts(ctx context.Context, locale string) ([]emag.ListedProduct, error)
}

type ProductHandler struct {
	browser Browser
	locale  string
	logger  *logger.Logger
}

func NewProductHandler(browser Browser, defaultLocale string, logger *logger.Logger) *ProductHandler {
	return &ProductHandler{
		browser: browser,
		locale:  defaultLocale,
		logger:  logger,
	}
}

type supplierProduct struct {
	fitness1.Product
	DisplayName string `json:"display_name"`
}

// Supplier lists the current supplier feed, optionally narrowed to one
// category.
func (h *ProductHandler) Supplier(c *gin.Context) {
	products, err := h.browser.SupplierProducts(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch supplier products: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch supplier products"})
		return
	}

	category := c.Query("category")
	out := make([]supplierProduct, 0, len(products))
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, supplierProduct{Product: p, DisplayName: p.DisplayName()})
	}

	c.JSON(http.StatusOK, gin.H{"data": out, "count": len(out)})
}

func (h *ProductHandler) Marketplace(c *gin.Context) {
	locale := c.DefaultQuery("locale", h.locale)

	listed, err := h.browser.MarketplaceProducts(c.Request.Context(), locale)
	if err != nil {
		h.logger.Error("Failed to fetch %s listings: %v", locale, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch marketplace listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listed, "count": len(listed), "locale": locale})
}
