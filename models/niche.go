package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SavedNiche represents a bookmarked sourcing niche with its latest score
type SavedNiche struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	Name         string          `json:"name" db:"name"`
	Category     string          `json:"category" db:"category"`
	Filters      json.RawMessage `json:"filters" db:"filters"` // JSONB filter parameters
	Score        decimal.Decimal `json:"score" db:"score"`
	LastScoredAt *time.Time      `json:"last_scored_at,omitempty" db:"last_scored_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the SavedNiche model
func (SavedNiche) TableName() string {
	return "saved_niches"
}

// NewSavedNiche creates a new SavedNiche instance
func NewSavedNiche(userID uuid.UUID, name, category string, filters json.RawMessage) *SavedNiche {
	now := time.Now()
	return &SavedNiche{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Category:  category,
		Filters:   filters,
		Score:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
