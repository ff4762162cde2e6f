// Package batch implements the batch analysis lifecycle: a user submits a
// list of ASINs, the job is admitted against the token budget, products
// are fetched (cache first), scored and stored as analyses.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"github.com/arbitragevault/backend/services"
	"github.com/arbitragevault/backend/services/keepa"
	"github.com/arbitragevault/backend/services/scoring"
	"github.com/arbitragevault/backend/services/tokenguard"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// maxASINsPerCall is the pricing API's per-request ASIN ceiling
	maxASINsPerCall = 100

	defaultPageSize = 20
	maxPageSize     = 100
)

// ProductFetcher fetches live product snapshots from the pricing API
type ProductFetcher interface {
	GetProducts(ctx context.Context, asins []string, opts keepa.ProductOptions) ([]models.ProductSnapshot, error)
}

// SnapshotCache is the TTL product cache consulted before the network
type SnapshotCache interface {
	GetMany(ctx context.Context, asins []string) (map[string]*models.ProductSnapshot, []string, error)
	PutMany(ctx context.Context, snapshots []models.ProductSnapshot)
}

// Service orchestrates batch creation and execution
type Service struct {
	batches  repositories.BatchRepository
	analyses repositories.AnalysisRepository
	txMgr    repositories.TransactionManager
	guard    *tokenguard.Guard
	fetcher  ProductFetcher
	cache    SnapshotCache
	logger   *zap.Logger
}

// NewService creates a new batch Service
func NewService(
	batches repositories.BatchRepository,
	analyses repositories.AnalysisRepository,
	txMgr repositories.TransactionManager,
	guard *tokenguard.Guard,
	fetcher ProductFetcher,
	cache SnapshotCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		batches:  batches,
		analyses: analyses,
		txMgr:    txMgr,
		guard:    guard,
		fetcher:  fetcher,
		cache:    cache,
		logger:   logger,
	}
}

// CreateBatch validates the ASIN list, runs the pre-flight token estimate
// and persists a pending batch. No pricing API call is made.
func (s *Service) CreateBatch(ctx context.Context, userID uuid.UUID, name, rawASINs string) (*models.Batch, tokenguard.Estimate, error) {
	valid, invalid := ParseASINs(rawASINs)
	if len(invalid) > 0 {
		return nil, tokenguard.Estimate{}, services.
			NewDomainError(services.ErrorTypeValidation, "input contains invalid ASINs", nil).
			WithDetail("invalid_asins", invalid)
	}
	if len(valid) == 0 {
		return nil, tokenguard.Estimate{}, services.ErrNoASINs
	}

	plan := tokenguard.CallPlan{ASINs: len(valid)}
	est, err := s.guard.AdmitJob(plan)
	if err != nil {
		return nil, est, err
	}

	batch := models.NewBatch(userID, name, valid, est.Tokens)
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, est, services.WrapInternal("failed to create batch", err)
	}

	s.logger.Info("batch created",
		zap.String("batch_id", batch.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("asin_count", batch.ASINCount),
		zap.Int("tokens_estimated", est.Tokens))

	return batch, est, nil
}

// RunBatch executes a pending batch: splits ASINs into cache hits and
// misses, re-admits the misses against the current balance, fetches and
// scores products, and stores the analyses. When a fetch fails mid-run,
// the analyses gathered up to that point are kept and the tokens already
// spent are still recorded against the batch.
func (s *Service) RunBatch(ctx context.Context, batchID, userID uuid.UUID) (*models.Batch, error) {
	batch, err := s.getOwned(ctx, batchID, userID)
	if err != nil {
		return nil, err
	}
	if batch.Status != models.BatchStatusPending {
		return nil, services.ErrBatchNotIdle
	}

	hits, misses, err := s.cache.GetMany(ctx, batch.ASINs)
	if err != nil {
		return nil, services.WrapInternal("failed to read product cache", err)
	}

	// Re-admit only the cache misses; hits cost zero tokens
	if len(misses) > 0 {
		if _, err := s.guard.AdmitJob(tokenguard.CallPlan{ASINs: len(misses)}); err != nil {
			return nil, err
		}
	}

	if err := s.batches.UpdateStatus(ctx, batch.ID, models.BatchStatusRunning, nil); err != nil {
		return nil, services.WrapInternal("failed to mark batch running", err)
	}

	snapshots := make([]models.ProductSnapshot, 0, len(batch.ASINs))
	for _, snap := range hits {
		snapshots = append(snapshots, *snap)
	}

	tokensSpent := 0
	var fetchErr error
	for _, chunk := range chunkASINs(misses, maxASINsPerCall) {
		fetched, err := s.fetcher.GetProducts(ctx, chunk, keepa.ProductOptions{})
		if err != nil {
			fetchErr = err
			break
		}
		tokensSpent += s.guard.Estimator().ProductCallCost(len(chunk), false)
		s.cache.PutMany(ctx, fetched)
		snapshots = append(snapshots, fetched...)
	}

	if tokensSpent > 0 {
		if err := s.batches.AddTokensSpent(ctx, batch.ID, tokensSpent); err != nil {
			s.logger.Error("failed to record tokens spent",
				zap.String("batch_id", batch.ID.String()),
				zap.Error(err))
		}
	}

	if fetchErr != nil {
		// Keep the analyses already gathered before surfacing the failure
		if err := s.storeAnalyses(ctx, batch.ID, snapshots); err != nil {
			s.logger.Error("failed to store partial results",
				zap.String("batch_id", batch.ID.String()),
				zap.Error(err))
		}
		s.failBatch(ctx, batch.ID, fetchErr)
		s.logger.Warn("batch failed mid-fetch",
			zap.String("batch_id", batch.ID.String()),
			zap.Int("analyzed", len(snapshots)),
			zap.Int("tokens_spent", tokensSpent))
		return nil, fetchErr
	}

	if err := s.storeAnalyses(ctx, batch.ID, snapshots); err != nil {
		s.failBatch(ctx, batch.ID, err)
		return nil, services.WrapInternal("failed to store batch results", err)
	}
	if err := s.batches.UpdateStatus(ctx, batch.ID, models.BatchStatusCompleted, nil); err != nil {
		return nil, services.WrapInternal("failed to mark batch completed", err)
	}

	s.logger.Info("batch completed",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("analyzed", len(snapshots)),
		zap.Int("cache_hits", len(hits)),
		zap.Int("tokens_spent", tokensSpent))

	return s.batches.GetByID(ctx, batch.ID)
}

// GetBatch returns a batch owned by the given user
func (s *Service) GetBatch(ctx context.Context, batchID, userID uuid.UUID) (*models.Batch, error) {
	return s.getOwned(ctx, batchID, userID)
}

// ListBatches returns a page of the user's batches with the total count
func (s *Service) ListBatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Batch, int, error) {
	limit, offset = clampPage(limit, offset)

	batches, err := s.batches.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, services.WrapInternal("failed to list batches", err)
	}
	total, err := s.batches.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, services.WrapInternal("failed to count batches", err)
	}
	return batches, total, nil
}

// ListResults returns a page of a batch's analyses with the total count
func (s *Service) ListResults(ctx context.Context, batchID, userID uuid.UUID, limit, offset int) ([]*models.Analysis, int, error) {
	if _, err := s.getOwned(ctx, batchID, userID); err != nil {
		return nil, 0, err
	}

	limit, offset = clampPage(limit, offset)

	results, err := s.analyses.ListByBatch(ctx, batchID, limit, offset)
	if err != nil {
		return nil, 0, services.WrapInternal("failed to list analyses", err)
	}
	total, err := s.analyses.CountByBatch(ctx, batchID)
	if err != nil {
		return nil, 0, services.WrapInternal("failed to count analyses", err)
	}
	return results, total, nil
}

// getOwned loads a batch and enforces ownership. A batch belonging to a
// different user reads as not found.
func (s *Service) getOwned(ctx context.Context, batchID, userID uuid.UUID) (*models.Batch, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, services.ErrBatchNotFound
	}
	if batch.UserID != userID {
		return nil, services.ErrBatchNotFound
	}
	return batch, nil
}

// storeAnalyses scores the snapshots and inserts them in one transaction
func (s *Service) storeAnalyses(ctx context.Context, batchID uuid.UUID, snapshots []models.ProductSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return s.txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		for _, snap := range snapshots {
			analysis := buildAnalysis(batchID, snap)
			if err := s.analyses.Insert(txCtx, analysis); err != nil {
				return fmt.Errorf("failed to insert analysis for %s: %w", snap.ASIN, err)
			}
		}
		return nil
	})
}

// failBatch marks a batch failed, logging rather than propagating a
// bookkeeping error so the original failure surfaces to the caller.
func (s *Service) failBatch(ctx context.Context, batchID uuid.UUID, cause error) {
	msg := cause.Error()
	if err := s.batches.UpdateStatus(ctx, batchID, models.BatchStatusFailed, &msg); err != nil {
		s.logger.Error("failed to mark batch failed",
			zap.String("batch_id", batchID.String()),
			zap.Error(err))
	}
}

// buildAnalysis scores one snapshot into a stored analysis row
func buildAnalysis(batchID uuid.UUID, snap models.ProductSnapshot) *models.Analysis {
	buyCost := scoring.DefaultBuyCost(snap)
	result := scoring.Score(snap, buyCost)

	sell := snap.BuyBoxPriceCents
	if sell < 0 {
		sell = 0
	}

	return &models.Analysis{
		ID:             uuid.New(),
		BatchID:        batchID,
		ASIN:           snap.ASIN,
		Title:          snap.Title,
		BuyCostCents:   buyCost,
		SellPriceCents: sell,
		FeesCents:      sell - buyCost - result.ProfitCents,
		ProfitCents:    result.ProfitCents,
		ROIPercent:     result.ROIPercent,
		VelocityScore:  result.VelocityScore,
		Grade:          result.Grade,
		SalesRank:      snap.SalesRank,
		CreatedAt:      time.Now(),
	}
}

// chunkASINs splits asins into slices of at most size
func chunkASINs(asins []string, size int) [][]string {
	if len(asins) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(asins)+size-1)/size)
	for size < len(asins) {
		chunks = append(chunks, asins[:size])
		asins = asins[size:]
	}
	return append(chunks, asins)
}

// clampPage normalizes pagination parameters
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
