package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"emagsync/internal/models"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedules keeps the single update schedule row.
type Schedules struct {
	db *gorm.DB
}

func NewSchedules(db *gorm.DB) *Schedules {
	return &Schedules{db: db}
}

// Get returns the schedule, or ErrNotFound when none was ever set.
func (s *Schedules) Get(ctx context.Context) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := s.db.WithContext(ctx).First(&schedule, models.ScheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}
	return &schedule, nil
}

// Save validates and stores the schedule, enabling it.
func (s *Schedules) Save(ctx context.Context, schedule models.Schedule) (*models.Schedule, error) {
	if err := Validate(schedule); err != nil {
		return nil, err
	}
	schedule.ID = models.ScheduleID
	schedule.Enabled = true
	schedule.LastRunAt = nil
	if existing, err := s.Get(ctx); err == nil {
		schedule.CreatedAt = existing.CreatedAt
	}
	if err := s.db.WithContext(ctx).Save(&schedule).Error; err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	return s.Get(ctx)
}

// Disable turns the schedule off. It returns ErrNotFound when there is no
// enabled schedule.
func (s *Schedules) Disable(ctx context.Context) error {
	res := s.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ? AND enabled = ?", models.ScheduleID, true).
		Update("enabled", false)
	if res.Error != nil {
		return fmt.Errorf("failed to disable schedule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Schedules) MarkRun(ctx context.Context, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ?", models.ScheduleID).
		Update("last_run_at", at).Error
}

func Validate(schedule models.Schedule) error {
	switch schedule.Type {
	case models.ScheduleTypeTime:
		if schedule.Hour < 0 || schedule.Hour > 23 || schedule.Minute < 0 || schedule.Minute > 59 {
			return fmt.Errorf("%w: time %02d:%02d", ErrInvalidSchedule, schedule.Hour, schedule.Minute)
		}
	case models.ScheduleTypeInterval:
		if schedule.IntervalHours <= 0 {
			return fmt.Errorf("%w: interval must be at least one hour", ErrInvalidSchedule)
		}
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidSchedule, schedule.Type)
	}
	return nil
}
