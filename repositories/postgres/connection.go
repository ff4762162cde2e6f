package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arbitragevault/backend/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Users table
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Batches table
		CREATE TABLE IF NOT EXISTS batches (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL,
			asins TEXT[] NOT NULL,
			asin_count INTEGER NOT NULL,
			tokens_estimated INTEGER NOT NULL DEFAULT 0,
			tokens_spent INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at TIMESTAMP,
			completed_at TIMESTAMP
		);

		-- Analyses table
		CREATE TABLE IF NOT EXISTS analyses (
			id UUID PRIMARY KEY,
			batch_id UUID NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			asin VARCHAR(10) NOT NULL,
			title TEXT NOT NULL,
			buy_cost_cents BIGINT NOT NULL,
			sell_price_cents BIGINT NOT NULL,
			fees_cents BIGINT NOT NULL,
			profit_cents BIGINT NOT NULL,
			roi_percent DECIMAL(10, 2) NOT NULL,
			velocity_score DECIMAL(5, 2) NOT NULL,
			grade VARCHAR(1) NOT NULL,
			sales_rank INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Saved niches table
		CREATE TABLE IF NOT EXISTS saved_niches (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100) NOT NULL,
			filters JSONB NOT NULL,
			score DECIMAL(5, 2) NOT NULL DEFAULT 0,
			last_scored_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Autosourcing jobs table
		CREATE TABLE IF NOT EXISTS autosourcing_jobs (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100) NOT NULL,
			criteria JSONB NOT NULL,
			interval_minutes INTEGER NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT true,
			last_run_at TIMESTAMP,
			last_status VARCHAR(20) NOT NULL DEFAULT 'never_run',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Job picks table
		CREATE TABLE IF NOT EXISTS job_picks (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES autosourcing_jobs(id) ON DELETE CASCADE,
			asin VARCHAR(10) NOT NULL,
			title TEXT NOT NULL,
			roi_percent DECIMAL(10, 2) NOT NULL,
			velocity_score DECIMAL(5, 2) NOT NULL,
			grade VARCHAR(1) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Product snapshot cache (fixed TTL, enforced by readers)
		CREATE TABLE IF NOT EXISTS product_cache (
			asin VARCHAR(10) PRIMARY KEY,
			payload JSONB NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_batches_user_id ON batches(user_id);
		CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
		CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);

		CREATE INDEX IF NOT EXISTS idx_analyses_batch_id ON analyses(batch_id);
		CREATE INDEX IF NOT EXISTS idx_analyses_asin ON analyses(asin);

		CREATE INDEX IF NOT EXISTS idx_saved_niches_user_id ON saved_niches(user_id);

		CREATE INDEX IF NOT EXISTS idx_autosourcing_jobs_user_id ON autosourcing_jobs(user_id);
		CREATE INDEX IF NOT EXISTS idx_autosourcing_jobs_enabled ON autosourcing_jobs(enabled);

		CREATE INDEX IF NOT EXISTS idx_job_picks_job_id ON job_picks(job_id);

		CREATE INDEX IF NOT EXISTS idx_product_cache_fetched_at ON product_cache(fetched_at);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
