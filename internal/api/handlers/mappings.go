package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"emagsync/internal/logger"
	"emagsync/internal/models"
	"emagsync/internal/pipeline"
	"emagsync/internal/store"

	"github.com/gin-gonic/gin"
)

type MappingStore interface {
	ListMappings(ctx context.Context) ([]models.CategoryMapping, error)
	SaveMapping(ctx context.Context, fitness1Category, emagCategory string) (*models.CategoryMapping, error)
	UpdateMappings(ctx context.Context, updates []store.MappingUpdate) (int, error)
	ReplaceMappings(ctx context.Context, assignment map[string]string) (int, error)
	DeleteMapping(ctx context.Context, id uint) error
}

// Proposer computes the automatic category assignment from live data.
type Proposer interface {
	ProposeMappings(ctx context.Context, opts pipeline.Options) (pipeline.MappingProposal, error)
}

type MappingHandler struct {
	mappings MappingStore
	proposer Proposer
	logger   *logger.Logger
}

func NewMappingHandler(mappings MappingStore, proposer Proposer, logger *logger.Logger) *MappingHandler {
	return &MappingHandler{
		mappings: mappings,
		proposer: proposer,
		logger:   logger,
	}
}

func (h *MappingHandler) List(c *gin.Context) {
	mappings, err := h.mappings.ListMappings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch mappings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": mappings})
}

type createMappingRequest struct {
	Fitness1Category string `json:"fitness1_category" binding:"required"`
	EmagCategory     string `json:"emag_category" binding:"required"`
}

func (h *MappingHandler) Create(c *gin.Context) {
	var req createMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mapping, err := h.mappings.SaveMapping(c.Request.Context(), req.Fitness1Category, req.EmagCategory)
	if err != nil {
		h.writeStoreError(c, err, "Failed to save mapping")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": mapping})
}

type updateMappingsRequest struct {
	Updates []store.MappingUpdate `json:"updates" binding:"required"`
}

// Update changes several mappings at once; either all of them apply or
// none does.
func (h *MappingHandler) Update(c *gin.Context) {
	var req updateMappingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "updates must not be empty"})
		return
	}

	updated, err := h.mappings.UpdateMappings(c.Request.Context(), req.Updates)
	if err != nil {
		h.writeStoreError(c, err, "Failed to update mappings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated": updated}})
}

func (h *MappingHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mapping id"})
		return
	}

	if err := h.mappings.DeleteMapping(c.Request.Context(), uint(id)); err != nil {
		h.writeStoreError(c, err, "Failed to delete mapping")
		return
	}

	c.Status(http.StatusNoContent)
}

type rebuildRequest struct {
	Threshold float64 `json:"threshold"`
	Locale    string  `json:"locale"`
	// Apply replaces the stored mappings with the proposal.
	Apply bool `json:"apply"`
}

// Rebuild recomputes the fuzzy assignment from live data. Without apply it
// only reports what would be stored.
func (h *MappingHandler) Rebuild(c *gin.Context) {
	var req rebuildRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Threshold < 0 || req.Threshold > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be between 0 and 100"})
		return
	}

	proposal, err := h.proposer.ProposeMappings(c.Request.Context(), pipeline.Options{
		Threshold: req.Threshold,
		Locale:    req.Locale,
	})
	if err != nil {
		h.logger.Error("Failed to compute category mappings: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	stored := 0
	if req.Apply {
		stored, err = h.mappings.ReplaceMappings(c.Request.Context(), proposal.Assignment)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store mappings"})
			return
		}
		h.logger.Info("Replaced category mappings with %d proposed entries", stored)
	}

	c.JSON(http.StatusOK, gin.H{"data": proposal, "applied": req.Apply, "stored": stored})
}

func (h *MappingHandler) writeStoreError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, store.ErrUnknownCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Mapping not found"})
	default:
		h.logger.Error("%s: %v", message, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
