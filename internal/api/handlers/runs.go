package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"emagsync/internal/logger"
	"emagsync/internal/models"
	"emagsync/internal/pipeline"
	"emagsync/internal/store"
	"emagsync/internal/worker/processors/export"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type RunStore interface {
	Get(ctx context.Context, id string) (*models.SyncRun, error)
	List(ctx context.Context, limit int) ([]models.SyncRun, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, opts pipeline.Options, trigger models.RunTrigger) (*models.SyncRun, error)
}

type RunHandler struct {
	runs     RunStore
	enqueuer Enqueuer
	logger   *logger.Logger
}

func NewRunHandler(runs RunStore, enqueuer Enqueuer, logger *logger.Logger) *RunHandler {
	return &RunHandler{
		runs:     runs,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Create queues a run. The response carries the pending run; its status is
// polled through Get.
func (h *RunHandler) Create(c *gin.Context) {
	var opts pipeline.Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := pipeline.ParseAction(string(opts.Action)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if opts.Pause < 0 || opts.BatchSize < 0 || opts.Threshold < 0 || opts.Threshold > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pause, batch_size and threshold must be non-negative, threshold at most 100"})
		return
	}

	run, err := h.enqueuer.Enqueue(c.Request.Context(), opts, models.RunTriggerAPI)
	if err != nil {
		h.logger.Error("Failed to queue %s run: %v", opts.Action, err)
		if run != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue run", "data": run})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create run"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": run})
}

func (h *RunHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *RunHandler) Get(c *gin.Context) {
	run, ok := h.find(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

// FailuresReport downloads the rejected batches of a run as a workbook.
func (h *RunHandler) FailuresReport(c *gin.Context) {
	run, ok := h.find(c)
	if !ok {
		return
	}

	var failures []export.Failure
	if len(run.Failures) > 0 {
		if err := json.Unmarshal(run.Failures, &failures); err != nil {
			h.logger.Error("Run %s has unreadable failures: %v", run.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read run failures"})
			return
		}
	}

	var buf bytes.Buffer
	if err := export.WriteReport(&buf, failures); err != nil {
		h.logger.Error("Failed to build report for run %s: %v", run.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s-failures.xlsx"`, run.ID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *RunHandler) find(c *gin.Context) (*models.SyncRun, bool) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch run"})
		return nil, false
	}
	return run, true
}
