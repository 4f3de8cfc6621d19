package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncRun is one queued or executed catalog run. Parameters, summary and
// failures are stored as JSON.
type SyncRun struct {
	ID         string         `json:"id" gorm:"type:uuid;primary_key"`
	Action     string         `json:"action" gorm:"not null;index"`
	Trigger    RunTrigger     `json:"trigger" gorm:"default:api"`
	Status     RunStatus      `json:"status" gorm:"default:pending;index"`
	Parameters datatypes.JSON `json:"parameters"`
	Summary    datatypes.JSON `json:"summary"`
	Failures   datatypes.JSON `json:"failures,omitempty"`
	Error      string         `json:"error,omitempty" gorm:"type:text"`
	StartedAt  *time.Time     `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type RunTrigger string

const (
	RunTriggerAPI      RunTrigger = "api"
	RunTriggerSchedule RunTrigger = "schedule"
	RunTriggerCLI      RunTrigger = "cli"
)

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// Done reports whether the run has finished either way.
func (r *SyncRun) Done() bool {
	return r.Status == RunStatusSucceeded || r.Status == RunStatusFailed
}
