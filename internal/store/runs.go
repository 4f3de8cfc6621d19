package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"emagsync/internal/models"
)

// Runs is the run status store, keyed by run id.
type Runs struct {
	db *gorm.DB
}

func NewRuns(db *gorm.DB) *Runs {
	return &Runs{db: db}
}

// Create stores a pending run with its parameters.
func (s *Runs) Create(ctx context.Context, action string, trigger models.RunTrigger, parameters interface{}) (*models.SyncRun, error) {
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run parameters: %w", err)
	}
	run := &models.SyncRun{
		Action:     action,
		Trigger:    trigger,
		Status:     models.RunStatusPending,
		Parameters: datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

func (s *Runs) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	return &run, nil
}

// List returns the latest runs first.
func (s *Runs) List(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []models.SyncRun
	err := s.db.WithContext(ctx).
		Omit("failures").
		Order("created_at desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Start moves a pending run to running. A run that is already running or
// finished is left alone and reported with ok=false.
func (s *Runs) Start(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ? AND status = ?", id, models.RunStatusPending).
		Updates(map[string]interface{}{
			"status":     models.RunStatusRunning,
			"started_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to start run: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Finish stores the outcome of a run. The summary is kept even when the run
// failed.
func (s *Runs) Finish(ctx context.Context, id string, summary, failures interface{}, runErr error, at time.Time) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("failed to encode run failures: %w", err)
	}

	updates := map[string]interface{}{
		"status":      models.RunStatusSucceeded,
		"summary":     datatypes.JSON(summaryJSON),
		"failures":    datatypes.JSON(failuresJSON),
		"error":       "",
		"finished_at": at,
	}
	if runErr != nil {
		updates["status"] = models.RunStatusFailed
		updates["error"] = runErr.Error()
	}

	res := s.db.WithContext(ctx).Model(&models.SyncRun{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to finish run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Fail marks a run failed without a summary, e.g. when it could not be
// queued.
func (s *Runs) Fail(ctx context.Context, id string, runErr error, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.RunStatusFailed,
			"error":       runErr.Error(),
			"finished_at": at,
		}).Error
}
