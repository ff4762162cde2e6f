package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// BatchRepository implements the repositories.BatchRepository interface
type BatchRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *DB, logger *zap.Logger) repositories.BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

const batchColumns = `id, user_id, name, status, asins, asin_count, tokens_estimated, tokens_spent, error_message, created_at, started_at, completed_at`

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		batch.ID,
		batch.UserID,
		batch.Name,
		batch.Status,
		pq.Array(batch.ASINs),
		batch.ASINCount,
		batch.TokensEstimated,
		batch.TokensSpent,
		batch.ErrorMessage,
		batch.CreatedAt,
		batch.StartedAt,
		batch.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	r.logger.Debug("batch created",
		zap.String("id", batch.ID.String()),
		zap.Int("asin_count", batch.ASINCount))
	return nil
}

// GetByID retrieves a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	return scanBatch(executor.QueryRowContext(ctx, query, id))
}

// ListByUser retrieves batches for a user with pagination, newest first
func (r *BatchRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM batches
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := make([]*models.Batch, 0)
	for rows.Next() {
		batch, err := scanBatchRow(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return batches, nil
}

// CountByUser returns the total number of batches for a user
func (r *BatchRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM batches WHERE user_id = $1`

	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return count, nil
}

// UpdateStatus records a lifecycle transition with its timestamps
func (r *BatchRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.BatchStatus, errorMessage *string) error {
	now := time.Now()

	var query string
	var args []interface{}
	switch status {
	case models.BatchStatusRunning:
		query = `UPDATE batches SET status = $1, started_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	case models.BatchStatusCompleted, models.BatchStatusFailed:
		query = `UPDATE batches SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4`
		args = []interface{}{status, errorMessage, now, id}
	default:
		query = `UPDATE batches SET status = $1 WHERE id = $2`
		args = []interface{}{status, id}
	}

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// AddTokensSpent increments the batch's spent-token counter
func (r *BatchRepository) AddTokensSpent(ctx context.Context, id uuid.UUID, tokens int) error {
	query := `UPDATE batches SET tokens_spent = tokens_spent + $1 WHERE id = $2`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, tokens, id); err != nil {
		return fmt.Errorf("failed to add tokens spent: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row *sql.Row) (*models.Batch, error) {
	batch, err := scanBatchRow(row)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	return batch, err
}

func scanBatchRow(s rowScanner) (*models.Batch, error) {
	batch := &models.Batch{}
	err := s.Scan(
		&batch.ID,
		&batch.UserID,
		&batch.Name,
		&batch.Status,
		pq.Array(&batch.ASINs),
		&batch.ASINCount,
		&batch.TokensEstimated,
		&batch.TokensSpent,
		&batch.ErrorMessage,
		&batch.CreatedAt,
		&batch.StartedAt,
		&batch.CompletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}
	return batch, nil
}
