package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"go.uber.org/zap"
)

// ProductCacheRepository implements the repositories.ProductCacheRepository
// interface over the product_cache table. TTL is enforced by readers via
// the cutoff argument, not by the database.
type ProductCacheRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProductCacheRepository creates a new product cache repository
func NewProductCacheRepository(db *DB, logger *zap.Logger) repositories.ProductCacheRepository {
	return &ProductCacheRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the cached snapshot for an ASIN if fetched after cutoff
func (r *ProductCacheRepository) Get(ctx context.Context, asin string, cutoff time.Time) (*models.ProductSnapshot, error) {
	query := `
		SELECT payload
		FROM product_cache
		WHERE asin = $1 AND fetched_at >= $2
	`

	executor := GetExecutor(ctx, r.db)
	var payload []byte
	err := executor.QueryRowContext(ctx, query, asin, cutoff).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get cached product: %w", err)
	}

	snapshot := &models.ProductSnapshot{}
	if err := json.Unmarshal(payload, snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached product: %w", err)
	}

	return snapshot, nil
}

// Put upserts a snapshot
func (r *ProductCacheRepository) Put(ctx context.Context, snapshot *models.ProductSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal product snapshot: %w", err)
	}

	query := `
		INSERT INTO product_cache (asin, payload, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (asin)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, snapshot.ASIN, payload, snapshot.FetchedAt); err != nil {
		return fmt.Errorf("failed to upsert cached product: %w", err)
	}

	return nil
}

// PurgeExpired deletes rows fetched before cutoff, returning the count
func (r *ProductCacheRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM product_cache WHERE fetched_at < $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache rows: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		r.logger.Info("purged expired product cache rows",
			zap.Int64("rows_deleted", rowsAffected),
			zap.Time("cutoff", cutoff))
	}

	return rowsAffected, nil
}
