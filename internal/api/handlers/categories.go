package handlers

import (
	"context"
	"net/http"

	"emagsync/internal/config"
	"emagsync/internal/logger"
	"emagsync/internal/models"

	"github.com/gin-gonic/gin"
)

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]models.FitnessCategory, error)
	SeedCategories(ctx context.Context, names []string, keywords map[string][]string) (int, error)
}

type CategoryHandler struct {
	categories CategoryStore
	logger     *logger.Logger
}

func NewCategoryHandler(categories CategoryStore, logger *logger.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		logger:     logger,
	}
}

func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.categories.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categories})
}

// Seed inserts the built-in allowed categories that are not stored yet.
func (h *CategoryHandler) Seed(c *gin.Context) {
	added, err := h.categories.SeedCategories(c.Request.Context(), config.DefaultFitnessCategories, config.DefaultKeywords)
	if err != nil {
		h.logger.Error("Failed to seed categories: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to seed categories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"added": added}})
}
