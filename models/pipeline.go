package models

import (
	"time"

	"gorm.io/gorm"
)

// Pipeline run statuses
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// PipelineRun records one execution of a pipeline task so that runs
// triggered by the scheduler or the API stay observable.
type PipelineRun struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Task       string     `gorm:"index" json:"task"` // ensure_raw_loaded, compute_features
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Symbols    int        `json:"symbols"` // symbols touched by the run
	Rows       int        `json:"rows"`    // rows written by the run
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MigratePipelineModels runs database migrations for pipeline models
func MigratePipelineModels(db *gorm.DB) error {
	return db.AutoMigrate(&PipelineRun{})
}
