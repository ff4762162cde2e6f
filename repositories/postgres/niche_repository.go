package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NicheRepository implements the repositories.NicheRepository interface
type NicheRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewNicheRepository creates a new niche repository
func NewNicheRepository(db *DB, logger *zap.Logger) repositories.NicheRepository {
	return &NicheRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new saved niche
func (r *NicheRepository) Create(ctx context.Context, niche *models.SavedNiche) error {
	query := `
		INSERT INTO saved_niches (id, user_id, name, category, filters, score, last_scored_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		niche.ID,
		niche.UserID,
		niche.Name,
		niche.Category,
		niche.Filters,
		niche.Score,
		niche.LastScoredAt,
		niche.CreatedAt,
		niche.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create saved niche: %w", err)
	}

	r.logger.Debug("saved niche created", zap.String("id", niche.ID.String()))
	return nil
}

// GetByID retrieves a saved niche by ID
func (r *NicheRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SavedNiche, error) {
	query := `
		SELECT id, user_id, name, category, filters, score, last_scored_at, created_at, updated_at
		FROM saved_niches
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	niche := &models.SavedNiche{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&niche.ID,
		&niche.UserID,
		&niche.Name,
		&niche.Category,
		&niche.Filters,
		&niche.Score,
		&niche.LastScoredAt,
		&niche.CreatedAt,
		&niche.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get saved niche: %w", err)
	}

	return niche, nil
}

// ListByUser retrieves saved niches for a user with pagination
func (r *NicheRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SavedNiche, error) {
	query := `
		SELECT id, user_id, name, category, filters, score, last_scored_at, created_at, updated_at
		FROM saved_niches
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved niches: %w", err)
	}
	defer rows.Close()

	niches := make([]*models.SavedNiche, 0)
	for rows.Next() {
		niche := &models.SavedNiche{}
		err := rows.Scan(
			&niche.ID,
			&niche.UserID,
			&niche.Name,
			&niche.Category,
			&niche.Filters,
			&niche.Score,
			&niche.LastScoredAt,
			&niche.CreatedAt,
			&niche.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saved niche: %w", err)
		}
		niches = append(niches, niche)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return niches, nil
}

// Update updates a saved niche
func (r *NicheRepository) Update(ctx context.Context, niche *models.SavedNiche) error {
	query := `
		UPDATE saved_niches
		SET name = $1, category = $2, filters = $3, score = $4, last_scored_at = $5, updated_at = $6
		WHERE id = $7
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		niche.Name,
		niche.Category,
		niche.Filters,
		niche.Score,
		niche.LastScoredAt,
		niche.UpdatedAt,
		niche.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update saved niche: %w", err)
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

// Delete deletes a saved niche
func (r *NicheRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM saved_niches WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved niche: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	r.logger.Debug("saved niche deleted", zap.String("id", id.String()))
	return nil
}
