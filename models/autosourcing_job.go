package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JobStatus represents the outcome of the most recent autosourcing run
type JobStatus string

const (
	JobStatusNever     JobStatus = "never_run"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// JobCriteria holds the discovery thresholds for an autosourcing job
type JobCriteria struct {
	MinROIPercent    float64 `json:"min_roi_percent" validate:"gte=0"`
	MinVelocityScore float64 `json:"min_velocity_score" validate:"gte=0,lte=100"`
	MaxResults       int     `json:"max_results" validate:"gt=0,lte=100"`
}

// AutosourcingJob represents a scheduled discovery job over a category
type AutosourcingJob struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	UserID          uuid.UUID   `json:"user_id" db:"user_id"`
	Name            string      `json:"name" db:"name"`
	Category        string      `json:"category" db:"category"`
	Criteria        JobCriteria `json:"criteria" db:"-"`
	IntervalMinutes int         `json:"interval_minutes" db:"interval_minutes"`
	Enabled         bool        `json:"enabled" db:"enabled"`
	LastRunAt       *time.Time  `json:"last_run_at,omitempty" db:"last_run_at"`
	LastStatus      JobStatus   `json:"last_status" db:"last_status"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the AutosourcingJob model
func (AutosourcingJob) TableName() string {
	return "autosourcing_jobs"
}

// NewAutosourcingJob creates a new enabled AutosourcingJob instance
func NewAutosourcingJob(userID uuid.UUID, name, category string, criteria JobCriteria, intervalMinutes int) *AutosourcingJob {
	now := time.Now()
	return &AutosourcingJob{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		Category:        category,
		Criteria:        criteria,
		IntervalMinutes: intervalMinutes,
		Enabled:         true,
		LastStatus:      JobStatusNever,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsDue returns true if the job should run at the given time
func (j *AutosourcingJob) IsDue(now time.Time) bool {
	if !j.Enabled {
		return false
	}
	if j.LastRunAt == nil {
		return true
	}
	return now.Sub(*j.LastRunAt) >= time.Duration(j.IntervalMinutes)*time.Minute
}

// JobPick represents a product discovered by an autosourcing run
type JobPick struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	JobID         uuid.UUID       `json:"job_id" db:"job_id"`
	ASIN          string          `json:"asin" db:"asin"`
	Title         string          `json:"title" db:"title"`
	ROIPercent    decimal.Decimal `json:"roi_percent" db:"roi_percent"`
	VelocityScore decimal.Decimal `json:"velocity_score" db:"velocity_score"`
	Grade         string          `json:"grade" db:"grade"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the JobPick model
func (JobPick) TableName() string {
	return "job_picks"
}
