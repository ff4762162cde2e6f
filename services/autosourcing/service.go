// Package autosourcing implements scheduled discovery jobs: each job
// periodically scans a category's bestsellers, scores the products and
// keeps the picks that pass the job's thresholds.
package autosourcing

import (
	"context"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"github.com/arbitragevault/backend/services"
	"github.com/arbitragevault/backend/services/keepa"
	"github.com/arbitragevault/backend/services/scoring"
	"github.com/arbitragevault/backend/services/tokenguard"
	"github.com/arbitragevault/backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// scanSampleSize caps how many bestseller ASINs one run fetches
	scanSampleSize = 50

	minIntervalMinutes = 15

	defaultPageSize = 20
	maxPageSize     = 100
)

// MarketClient is the slice of the pricing API a job run needs
type MarketClient interface {
	BestSellers(ctx context.Context, category string) ([]string, error)
	GetProducts(ctx context.Context, asins []string, opts keepa.ProductOptions) ([]models.ProductSnapshot, error)
}

// SnapshotCache is the TTL product cache consulted before the network
type SnapshotCache interface {
	GetMany(ctx context.Context, asins []string) (map[string]*models.ProductSnapshot, []string, error)
	PutMany(ctx context.Context, snapshots []models.ProductSnapshot)
}

// Service manages autosourcing jobs and runs due ones
type Service struct {
	jobs   repositories.AutosourcingRepository
	guard  *tokenguard.Guard
	market MarketClient
	cache  SnapshotCache
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new autosourcing Service
func NewService(
	jobs repositories.AutosourcingRepository,
	guard *tokenguard.Guard,
	market MarketClient,
	cache SnapshotCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		jobs:   jobs,
		guard:  guard,
		market: market,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// CreateJob validates and persists a new enabled job
func (s *Service) CreateJob(ctx context.Context, userID uuid.UUID, name, category string, criteria models.JobCriteria, intervalMinutes int) (*models.AutosourcingJob, error) {
	if name == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "job name is required", nil)
	}
	if category == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "category is required", nil)
	}
	if intervalMinutes < minIntervalMinutes {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "interval is below the minimum", nil).
			WithDetail("min_interval_minutes", minIntervalMinutes)
	}
	if err := utils.ValidateStruct(criteria); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid job criteria", err)
	}

	job := models.NewAutosourcingJob(userID, name, category, criteria, intervalMinutes)
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, services.WrapInternal("failed to create autosourcing job", err)
	}

	s.logger.Info("autosourcing job created",
		zap.String("job_id", job.ID.String()),
		zap.String("category", category),
		zap.Int("interval_minutes", intervalMinutes))
	return job, nil
}

// GetJob returns a job owned by the given user
func (s *Service) GetJob(ctx context.Context, jobID, userID uuid.UUID) (*models.AutosourcingJob, error) {
	return s.getOwned(ctx, jobID, userID)
}

// ListJobs returns a page of the user's jobs
func (s *Service) ListJobs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AutosourcingJob, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := s.jobs.ListJobsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list autosourcing jobs", err)
	}
	return jobs, nil
}

// SetEnabled toggles a job's schedule
func (s *Service) SetEnabled(ctx context.Context, jobID, userID uuid.UUID, enabled bool) (*models.AutosourcingJob, error) {
	job, err := s.getOwned(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	job.Enabled = enabled
	job.UpdatedAt = s.now()
	if err := s.jobs.UpdateJob(ctx, job); err != nil {
		return nil, services.WrapInternal("failed to update autosourcing job", err)
	}
	return job, nil
}

// DeleteJob removes a job and its picks
func (s *Service) DeleteJob(ctx context.Context, jobID, userID uuid.UUID) error {
	if _, err := s.getOwned(ctx, jobID, userID); err != nil {
		return err
	}
	if err := s.jobs.DeleteJob(ctx, jobID); err != nil {
		return services.WrapInternal("failed to delete autosourcing job", err)
	}
	return nil
}

// ListPicks returns the picks from a job's most recent successful run
func (s *Service) ListPicks(ctx context.Context, jobID, userID uuid.UUID) ([]*models.JobPick, error) {
	if _, err := s.getOwned(ctx, jobID, userID); err != nil {
		return nil, err
	}
	picks, err := s.jobs.ListPicks(ctx, jobID)
	if err != nil {
		return nil, services.WrapInternal("failed to list job picks", err)
	}
	return picks, nil
}

// RunJob executes one discovery run for a job: scans the category's
// bestsellers, scores the sample and replaces the job's picks with the
// products passing its criteria. The run is admitted against the token
// budget before any network call.
func (s *Service) RunJob(ctx context.Context, job *models.AutosourcingJob) error {
	plan := tokenguard.CallPlan{BestsellerCalls: 1, ASINs: scanSampleSize}
	if _, err := s.guard.AdmitJob(plan); err != nil {
		return err
	}

	asins, err := s.market.BestSellers(ctx, job.Category)
	if err != nil {
		s.recordRun(ctx, job.ID, models.JobStatusFailed)
		return err
	}
	if len(asins) > scanSampleSize {
		asins = asins[:scanSampleSize]
	}

	snapshots, err := s.fetchSnapshots(ctx, asins)
	if err != nil {
		s.recordRun(ctx, job.ID, models.JobStatusFailed)
		return err
	}

	picks := selectPicks(job, snapshots, s.now())
	if err := s.jobs.ReplacePicks(ctx, job.ID, picks); err != nil {
		s.recordRun(ctx, job.ID, models.JobStatusFailed)
		return services.WrapInternal("failed to store job picks", err)
	}

	s.recordRun(ctx, job.ID, models.JobStatusSucceeded)
	s.logger.Info("autosourcing run completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("scanned", len(snapshots)),
		zap.Int("picks", len(picks)))
	return nil
}

// StartWorker runs the job scheduler until ctx is cancelled. Each tick it
// runs every enabled job that is due. A run failure only affects its own
// job; budget rejections simply defer the job to a later tick.
func (s *Service) StartWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started autosourcing worker", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			s.runDueJobs(ctx)
		case <-ctx.Done():
			s.logger.Info("stopping autosourcing worker")
			return
		}
	}
}

func (s *Service) runDueJobs(ctx context.Context) {
	jobs, err := s.jobs.ListEnabledJobs(ctx)
	if err != nil {
		s.logger.Error("failed to list enabled jobs", zap.Error(err))
		return
	}

	now := s.now()
	for _, job := range jobs {
		if !job.IsDue(now) {
			continue
		}
		if err := s.RunJob(ctx, job); err != nil {
			s.logger.Warn("autosourcing run failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
		}
	}
}

// recordRun updates the job's last-run bookkeeping, logging on failure
func (s *Service) recordRun(ctx context.Context, jobID uuid.UUID, status models.JobStatus) {
	if err := s.jobs.RecordRun(ctx, jobID, s.now(), status); err != nil {
		s.logger.Error("failed to record job run",
			zap.String("job_id", jobID.String()),
			zap.Error(err))
	}
}

// fetchSnapshots resolves asins through the cache, fetching only misses
func (s *Service) fetchSnapshots(ctx context.Context, asins []string) ([]models.ProductSnapshot, error) {
	hits, misses, err := s.cache.GetMany(ctx, asins)
	if err != nil {
		return nil, services.WrapInternal("failed to read product cache", err)
	}

	snapshots := make([]models.ProductSnapshot, 0, len(asins))
	for _, snap := range hits {
		snapshots = append(snapshots, *snap)
	}

	if len(misses) > 0 {
		fetched, err := s.market.GetProducts(ctx, misses, keepa.ProductOptions{})
		if err != nil {
			return nil, err
		}
		s.cache.PutMany(ctx, fetched)
		snapshots = append(snapshots, fetched...)
	}
	return snapshots, nil
}

func (s *Service) getOwned(ctx context.Context, jobID, userID uuid.UUID) (*models.AutosourcingJob, error) {
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, services.ErrJobNotFound
	}
	if job.UserID != userID {
		return nil, services.ErrJobNotFound
	}
	return job, nil
}

// selectPicks scores the snapshots and keeps those passing the job's
// criteria, capped at MaxResults
func selectPicks(job *models.AutosourcingJob, snapshots []models.ProductSnapshot, now time.Time) []*models.JobPick {
	minROI := decimal.NewFromFloat(job.Criteria.MinROIPercent)
	minVelocity := decimal.NewFromFloat(job.Criteria.MinVelocityScore)

	picks := make([]*models.JobPick, 0, job.Criteria.MaxResults)
	for _, snap := range snapshots {
		if len(picks) >= job.Criteria.MaxResults {
			break
		}

		result := scoring.Score(snap, scoring.DefaultBuyCost(snap))
		if result.ROIPercent.LessThan(minROI) {
			continue
		}
		if result.VelocityScore.LessThan(minVelocity) {
			continue
		}

		picks = append(picks, &models.JobPick{
			ID:            uuid.New(),
			JobID:         job.ID,
			ASIN:          snap.ASIN,
			Title:         snap.Title,
			ROIPercent:    result.ROIPercent,
			VelocityScore: result.VelocityScore,
			Grade:         result.Grade,
			CreatedAt:     now,
		})
	}
	return picks
}
