package models

import "time"

// Schedule is the single row describing when update runs are enqueued.
type Schedule struct {
	ID            uint         `json:"-" gorm:"primaryKey"`
	Type          ScheduleType `json:"schedule_type" gorm:"size:16;not null"`
	Hour          int          `json:"hour"`
	Minute        int          `json:"minute"`
	IntervalHours int          `json:"interval_hours"`
	Enabled       bool         `json:"enabled"`
	LastRunAt     *time.Time   `json:"last_run_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type ScheduleType string

const (
	ScheduleTypeTime     ScheduleType = "time"
	ScheduleTypeInterval ScheduleType = "interval"
)

// ScheduleID is the primary key of the only schedule row.
const ScheduleID uint = 1
