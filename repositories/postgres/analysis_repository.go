package postgres

import (
	"context"
	"fmt"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnalysisRepository implements the repositories.AnalysisRepository interface
type AnalysisRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *DB, logger *zap.Logger) repositories.AnalysisRepository {
	return &AnalysisRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new analysis row
func (r *AnalysisRepository) Insert(ctx context.Context, analysis *models.Analysis) error {
	query := `
		INSERT INTO analyses (id, batch_id, asin, title, buy_cost_cents, sell_price_cents, fees_cents,
			profit_cents, roi_percent, velocity_score, grade, sales_rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		analysis.ID,
		analysis.BatchID,
		analysis.ASIN,
		analysis.Title,
		analysis.BuyCostCents,
		analysis.SellPriceCents,
		analysis.FeesCents,
		analysis.ProfitCents,
		analysis.ROIPercent,
		analysis.VelocityScore,
		analysis.Grade,
		analysis.SalesRank,
		analysis.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	return nil
}

// ListByBatch retrieves analyses for a batch with pagination, best ROI first
func (r *AnalysisRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Analysis, error) {
	query := `
		SELECT id, batch_id, asin, title, buy_cost_cents, sell_price_cents, fees_cents,
			profit_cents, roi_percent, velocity_score, grade, sales_rank, created_at
		FROM analyses
		WHERE batch_id = $1
		ORDER BY roi_percent DESC, created_at ASC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, batchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]*models.Analysis, 0)
	for rows.Next() {
		analysis := &models.Analysis{}
		err := rows.Scan(
			&analysis.ID,
			&analysis.BatchID,
			&analysis.ASIN,
			&analysis.Title,
			&analysis.BuyCostCents,
			&analysis.SellPriceCents,
			&analysis.FeesCents,
			&analysis.ProfitCents,
			&analysis.ROIPercent,
			&analysis.VelocityScore,
			&analysis.Grade,
			&analysis.SalesRank,
			&analysis.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, analysis)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return analyses, nil
}

// CountByBatch returns the number of analyses for a batch
func (r *AnalysisRepository) CountByBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM analyses WHERE batch_id = $1`

	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, query, batchID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return count, nil
}
