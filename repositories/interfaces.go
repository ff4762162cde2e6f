package repositories

import (
	"context"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/google/uuid"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// BatchRepository handles batch data operations
type BatchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Batch, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// UpdateStatus records a lifecycle transition with its timestamps
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.BatchStatus, errorMessage *string) error

	// AddTokensSpent increments the batch's spent-token counter
	AddTokensSpent(ctx context.Context, id uuid.UUID, tokens int) error
}

// AnalysisRepository handles analysis data operations
type AnalysisRepository interface {
	Insert(ctx context.Context, analysis *models.Analysis) error
	ListByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Analysis, error)
	CountByBatch(ctx context.Context, batchID uuid.UUID) (int, error)
}

// NicheRepository handles saved niche data operations
type NicheRepository interface {
	Create(ctx context.Context, niche *models.SavedNiche) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SavedNiche, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SavedNiche, error)
	Update(ctx context.Context, niche *models.SavedNiche) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AutosourcingRepository handles autosourcing job and pick data operations
type AutosourcingRepository interface {
	CreateJob(ctx context.Context, job *models.AutosourcingJob) error
	GetJobByID(ctx context.Context, id uuid.UUID) (*models.AutosourcingJob, error)
	ListJobsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AutosourcingJob, error)
	ListEnabledJobs(ctx context.Context) ([]*models.AutosourcingJob, error)
	UpdateJob(ctx context.Context, job *models.AutosourcingJob) error
	DeleteJob(ctx context.Context, id uuid.UUID) error

	// RecordRun updates a job's last-run bookkeeping
	RecordRun(ctx context.Context, id uuid.UUID, at time.Time, status models.JobStatus) error

	// ReplacePicks swaps the picks for a job with a fresh result set
	ReplacePicks(ctx context.Context, jobID uuid.UUID, picks []*models.JobPick) error
	ListPicks(ctx context.Context, jobID uuid.UUID) ([]*models.JobPick, error)
}

// ProductCacheRepository handles TTL-cached product snapshot rows
type ProductCacheRepository interface {
	// Get returns the cached snapshot for an ASIN if fetched after cutoff
	Get(ctx context.Context, asin string, cutoff time.Time) (*models.ProductSnapshot, error)

	// Put upserts a snapshot
	Put(ctx context.Context, snapshot *models.ProductSnapshot) error

	// PurgeExpired deletes rows fetched before cutoff, returning the count
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories bundles all repository instances
type Repositories struct {
	Users        UserRepository
	Batches      BatchRepository
	Analyses     AnalysisRepository
	Niches       NicheRepository
	Autosourcing AutosourcingRepository
	ProductCache ProductCacheRepository
}
