package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Analysis represents the scored result for a single ASIN within a batch
type Analysis struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	BatchID        uuid.UUID       `json:"batch_id" db:"batch_id"`
	ASIN           string          `json:"asin" db:"asin"`
	Title          string          `json:"title" db:"title"`
	BuyCostCents   int64           `json:"buy_cost_cents" db:"buy_cost_cents"`
	SellPriceCents int64           `json:"sell_price_cents" db:"sell_price_cents"`
	FeesCents      int64           `json:"fees_cents" db:"fees_cents"`
	ProfitCents    int64           `json:"profit_cents" db:"profit_cents"`
	ROIPercent     decimal.Decimal `json:"roi_percent" db:"roi_percent"`
	VelocityScore  decimal.Decimal `json:"velocity_score" db:"velocity_score"`
	Grade          string          `json:"grade" db:"grade"`
	SalesRank      int             `json:"sales_rank" db:"sales_rank"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Analysis model
func (Analysis) TableName() string {
	return "analyses"
}
