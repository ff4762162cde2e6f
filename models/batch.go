package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the lifecycle state of an analysis batch
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// Batch represents a batch analysis job over a list of ASINs
type Batch struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	UserID          uuid.UUID   `json:"user_id" db:"user_id"`
	Name            string      `json:"name" db:"name"`
	Status          BatchStatus `json:"status" db:"status"`
	ASINs           []string    `json:"asins" db:"-"`
	ASINCount       int         `json:"asin_count" db:"asin_count"`
	TokensEstimated int         `json:"tokens_estimated" db:"tokens_estimated"`
	TokensSpent     int         `json:"tokens_spent" db:"tokens_spent"`
	ErrorMessage    *string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// TableName returns the table name for the Batch model
func (Batch) TableName() string {
	return "batches"
}

// NewBatch creates a new pending Batch instance
func NewBatch(userID uuid.UUID, name string, asins []string, tokensEstimated int) *Batch {
	return &Batch{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		Status:          BatchStatusPending,
		ASINs:           asins,
		ASINCount:       len(asins),
		TokensEstimated: tokensEstimated,
		CreatedAt:       time.Now(),
	}
}

// IsTerminal returns true if the batch has finished running
func (b *Batch) IsTerminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}
