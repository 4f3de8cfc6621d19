package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"emagsync/internal/logger"
	"emagsync/internal/models"
	"emagsync/internal/scheduler"
	"emagsync/internal/store"

	"github.com/gin-gonic/gin"
)

type ScheduleStore interface {
	Get(ctx context.Context) (*models.Schedule, error)
	Save(ctx context.Context, schedule models.Schedule) (*models.Schedule, error)
	Disable(ctx context.Context) error
}

// Trigger queues an update run outside the schedule.
type Trigger interface {
	Trigger(ctx context.Context) (*models.SyncRun, error)
}

type ScheduleHandler struct {
	schedules ScheduleStore
	trigger   Trigger
	now       func() time.Time
	logger    *logger.Logger
}

func NewScheduleHandler(schedules ScheduleStore, trigger Trigger, logger *logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		schedules: schedules,
		trigger:   trigger,
		now:       time.Now,
		logger:    logger,
	}
}

func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.schedules.Get(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No schedule configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch schedule"})
		return
	}

	c.JSON(http.StatusOK, h.response(schedule))
}

// scheduleRequest takes the time of day as "HH:MM".
type scheduleRequest struct {
	Type          models.ScheduleType `json:"schedule_type" binding:"required"`
	Time          string              `json:"time"`
	IntervalHours int                 `json:"interval_hours"`
}

func (h *ScheduleHandler) Save(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule := models.Schedule{Type: req.Type, IntervalHours: req.IntervalHours}
	if req.Type == models.ScheduleTypeTime {
		hour, minute, err := parseClock(req.Time)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		schedule.Hour, schedule.Minute = hour, minute
	}

	saved, err := h.schedules.Save(c.Request.Context(), schedule)
	if err != nil {
		if errors.Is(err, store.ErrInvalidSchedule) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to save schedule: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save schedule"})
		return
	}

	h.logger.Info("Schedule set: %s", describe(*saved))
	c.JSON(http.StatusOK, h.response(saved))
}

func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.schedules.Disable(c.Request.Context()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No schedule configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disable schedule"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Run queues an update run now.
func (h *ScheduleHandler) Run(c *gin.Context) {
	run, err := h.trigger.Trigger(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to trigger update run: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue run"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": run})
}

func (h *ScheduleHandler) response(schedule *models.Schedule) gin.H {
	out := gin.H{"data": schedule, "description": describe(*schedule)}
	if next, ok := scheduler.NextRun(*schedule, h.now()); ok {
		out["next_run_time"] = next
	}
	return out
}

func describe(s models.Schedule) string {
	if !s.Enabled {
		return "disabled"
	}
	switch s.Type {
	case models.ScheduleTypeTime:
		return fmt.Sprintf("daily at %02d:%02d", s.Hour, s.Minute)
	case models.ScheduleTypeInterval:
		return fmt.Sprintf("every %d hours", s.IntervalHours)
	}
	return string(s.Type)
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("time must be HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
