package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AutosourcingRepository implements the repositories.AutosourcingRepository interface
type AutosourcingRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAutosourcingRepository creates a new autosourcing repository
func NewAutosourcingRepository(db *DB, logger *zap.Logger) repositories.AutosourcingRepository {
	return &AutosourcingRepository{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `id, user_id, name, category, criteria, interval_minutes, enabled, last_run_at, last_status, created_at, updated_at`

// CreateJob creates a new autosourcing job
func (r *AutosourcingRepository) CreateJob(ctx context.Context, job *models.AutosourcingJob) error {
	criteria, err := json.Marshal(job.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}

	query := `
		INSERT INTO autosourcing_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.Name,
		job.Category,
		criteria,
		job.IntervalMinutes,
		job.Enabled,
		job.LastRunAt,
		job.LastStatus,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create autosourcing job: %w", err)
	}

	r.logger.Debug("autosourcing job created", zap.String("id", job.ID.String()))
	return nil
}

// GetJobByID retrieves an autosourcing job by ID
func (r *AutosourcingRepository) GetJobByID(ctx context.Context, id uuid.UUID) (*models.AutosourcingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM autosourcing_jobs
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	return scanJob(executor.QueryRowContext(ctx, query, id))
}

// ListJobsByUser retrieves autosourcing jobs for a user with pagination
func (r *AutosourcingRepository) ListJobsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AutosourcingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM autosourcing_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list autosourcing jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListEnabledJobs retrieves all enabled jobs for the scheduler
func (r *AutosourcingRepository) ListEnabledJobs(ctx context.Context) ([]*models.AutosourcingJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM autosourcing_jobs
		WHERE enabled = true
		ORDER BY last_run_at ASC NULLS FIRST
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// UpdateJob updates an autosourcing job
func (r *AutosourcingRepository) UpdateJob(ctx context.Context, job *models.AutosourcingJob) error {
	criteria, err := json.Marshal(job.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}

	query := `
		UPDATE autosourcing_jobs
		SET name = $1, category = $2, criteria = $3, interval_minutes = $4, enabled = $5, updated_at = $6
		WHERE id = $7
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		job.Name,
		job.Category,
		criteria,
		job.IntervalMinutes,
		job.Enabled,
		job.UpdatedAt,
		job.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update autosourcing job: %w", err)
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

// DeleteJob deletes an autosourcing job
func (r *AutosourcingRepository) DeleteJob(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM autosourcing_jobs WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete autosourcing job: %w", err)
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

// RecordRun updates a job's last-run bookkeeping
func (r *AutosourcingRepository) RecordRun(ctx context.Context, id uuid.UUID, at time.Time, status models.JobStatus) error {
	query := `UPDATE autosourcing_jobs SET last_run_at = $1, last_status = $2 WHERE id = $3`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, at, status, id); err != nil {
		return fmt.Errorf("failed to record job run: %w", err)
	}
	return nil
}

// ReplacePicks swaps the picks for a job with a fresh result set
func (r *AutosourcingRepository) ReplacePicks(ctx context.Context, jobID uuid.UUID, picks []*models.JobPick) error {
	executor := GetExecutor(ctx, r.db)

	if _, err := executor.ExecContext(ctx, `DELETE FROM job_picks WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to clear job picks: %w", err)
	}

	query := `
		INSERT INTO job_picks (id, job_id, asin, title, roi_percent, velocity_score, grade, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, pick := range picks {
		_, err := executor.ExecContext(ctx, query,
			pick.ID,
			pick.JobID,
			pick.ASIN,
			pick.Title,
			pick.ROIPercent,
			pick.VelocityScore,
			pick.Grade,
			pick.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert job pick: %w", err)
		}
	}

	return nil
}

// ListPicks retrieves the picks for a job, best ROI first
func (r *AutosourcingRepository) ListPicks(ctx context.Context, jobID uuid.UUID) ([]*models.JobPick, error) {
	query := `
		SELECT id, job_id, asin, title, roi_percent, velocity_score, grade, created_at
		FROM job_picks
		WHERE job_id = $1
		ORDER BY roi_percent DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job picks: %w", err)
	}
	defer rows.Close()

	picks := make([]*models.JobPick, 0)
	for rows.Next() {
		pick := &models.JobPick{}
		err := rows.Scan(
			&pick.ID,
			&pick.JobID,
			&pick.ASIN,
			&pick.Title,
			&pick.ROIPercent,
			&pick.VelocityScore,
			&pick.Grade,
			&pick.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job pick: %w", err)
		}
		picks = append(picks, pick)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return picks, nil
}

func scanJob(row *sql.Row) (*models.AutosourcingJob, error) {
	job := &models.AutosourcingJob{}
	var criteria []byte
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Name,
		&job.Category,
		&criteria,
		&job.IntervalMinutes,
		&job.Enabled,
		&job.LastRunAt,
		&job.LastStatus,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan autosourcing job: %w", err)
	}
	if err := json.Unmarshal(criteria, &job.Criteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
	}
	return job, nil
}

func collectJobs(rows *sql.Rows) ([]*models.AutosourcingJob, error) {
	jobs := make([]*models.AutosourcingJob, 0)
	for rows.Next() {
		job := &models.AutosourcingJob{}
		var criteria []byte
		err := rows.Scan(
			&job.ID,
			&job.UserID,
			&job.Name,
			&job.Category,
			&criteria,
			&job.IntervalMinutes,
			&job.Enabled,
			&job.LastRunAt,
			&job.LastStatus,
			&job.CreatedAt,
			&job.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan autosourcing job: %w", err)
		}
		if err := json.Unmarshal(criteria, &job.Criteria); err != nil {
			return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return jobs, nil
}
