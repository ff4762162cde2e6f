// Package niche implements saved sourcing niches: bookmarked category
// searches a user can re-score on demand against live bestseller data.
package niche

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"github.com/arbitragevault/backend/services"
	"github.com/arbitragevault/backend/services/keepa"
	"github.com/arbitragevault/backend/services/scoring"
	"github.com/arbitragevault/backend/services/tokenguard"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// rescoreSampleSize caps how many bestseller ASINs one rescore fetches
	rescoreSampleSize = 20

	defaultPageSize = 20
	maxPageSize     = 100
)

// MarketClient is the slice of the pricing API a rescore needs
type MarketClient interface {
	BestSellers(ctx context.Context, category string) ([]string, error)
	GetProducts(ctx context.Context, asins []string, opts keepa.ProductOptions) ([]models.ProductSnapshot, error)
}

// SnapshotCache is the TTL product cache consulted before the network
type SnapshotCache interface {
	GetMany(ctx context.Context, asins []string) (map[string]*models.ProductSnapshot, []string, error)
	PutMany(ctx context.Context, snapshots []models.ProductSnapshot)
}

// Filters are the optional thresholds stored with a niche. Products
// outside the thresholds are excluded from the niche score.
type Filters struct {
	MinROIPercent float64 `json:"min_roi_percent,omitempty"`
	MaxSalesRank  int     `json:"max_sales_rank,omitempty"`
}

// Service manages saved niches and their scores
type Service struct {
	niches repositories.NicheRepository
	guard  *tokenguard.Guard
	market MarketClient
	cache  SnapshotCache
	logger *zap.Logger
}

// NewService creates a new niche Service
func NewService(
	niches repositories.NicheRepository,
	guard *tokenguard.Guard,
	market MarketClient,
	cache SnapshotCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		niches: niches,
		guard:  guard,
		market: market,
		cache:  cache,
		logger: logger,
	}
}

// Create saves a new niche for the user
func (s *Service) Create(ctx context.Context, userID uuid.UUID, name, category string, filters json.RawMessage) (*models.SavedNiche, error) {
	if name == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "niche name is required", nil)
	}
	if category == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "category is required", nil)
	}
	if len(filters) > 0 {
		var f Filters
		if err := json.Unmarshal(filters, &f); err != nil {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid filters", err)
		}
	} else {
		filters = json.RawMessage("{}")
	}

	niche := models.NewSavedNiche(userID, name, category, filters)
	if err := s.niches.Create(ctx, niche); err != nil {
		return nil, services.WrapInternal("failed to create niche", err)
	}

	s.logger.Info("niche created",
		zap.String("niche_id", niche.ID.String()),
		zap.String("category", category))
	return niche, nil
}

// Get returns a niche owned by the given user
func (s *Service) Get(ctx context.Context, nicheID, userID uuid.UUID) (*models.SavedNiche, error) {
	return s.getOwned(ctx, nicheID, userID)
}

// List returns a page of the user's niches
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SavedNiche, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	niches, err := s.niches.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list niches", err)
	}
	return niches, nil
}

// Update renames a niche or replaces its filters
func (s *Service) Update(ctx context.Context, nicheID, userID uuid.UUID, name string, filters json.RawMessage) (*models.SavedNiche, error) {
	niche, err := s.getOwned(ctx, nicheID, userID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		niche.Name = name
	}
	if len(filters) > 0 {
		var f Filters
		if err := json.Unmarshal(filters, &f); err != nil {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid filters", err)
		}
		niche.Filters = filters
	}
	niche.UpdatedAt = time.Now()

	if err := s.niches.Update(ctx, niche); err != nil {
		return nil, services.WrapInternal("failed to update niche", err)
	}
	return niche, nil
}

// Delete removes a niche owned by the given user
func (s *Service) Delete(ctx context.Context, nicheID, userID uuid.UUID) error {
	if _, err := s.getOwned(ctx, nicheID, userID); err != nil {
		return err
	}
	if err := s.niches.Delete(ctx, nicheID); err != nil {
		return services.WrapInternal("failed to delete niche", err)
	}
	return nil
}

// Rescore refreshes a niche's score from live bestseller data. The job is
// admitted against the token budget before any network call.
func (s *Service) Rescore(ctx context.Context, nicheID, userID uuid.UUID) (*models.SavedNiche, error) {
	niche, err := s.getOwned(ctx, nicheID, userID)
	if err != nil {
		return nil, err
	}

	plan := tokenguard.CallPlan{BestsellerCalls: 1, ASINs: rescoreSampleSize}
	if _, err := s.guard.AdmitJob(plan); err != nil {
		return nil, err
	}

	asins, err := s.market.BestSellers(ctx, niche.Category)
	if err != nil {
		return nil, err
	}
	if len(asins) > rescoreSampleSize {
		asins = asins[:rescoreSampleSize]
	}

	snapshots, err := s.fetchSnapshots(ctx, asins)
	if err != nil {
		return nil, err
	}

	var filters Filters
	if len(niche.Filters) > 0 {
		// Filters were validated on write
		_ = json.Unmarshal(niche.Filters, &filters)
	}

	niche.Score = nicheScore(snapshots, filters)
	now := time.Now()
	niche.LastScoredAt = &now
	niche.UpdatedAt = now

	if err := s.niches.Update(ctx, niche); err != nil {
		return nil, services.WrapInternal("failed to store niche score", err)
	}

	s.logger.Info("niche rescored",
		zap.String("niche_id", niche.ID.String()),
		zap.String("score", niche.Score.String()),
		zap.Int("sampled", len(snapshots)))
	return niche, nil
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

func (s *Service) getOwned(ctx context.Context, nicheID, userID uuid.UUID) (*models.SavedNiche, error) {
	niche, err := s.niches.GetByID(ctx, nicheID)
	if err != nil {
		return nil, services.ErrNicheNotFound
	}
	if niche.UserID != userID {
		return nil, services.ErrNicheNotFound
	}
	return niche, nil
}

// nicheScore averages a per-product composite of ROI and velocity over
// the snapshots passing the niche filters. ROI contributes capped at 100
// so one outlier deal cannot dominate the niche.
func nicheScore(snapshots []models.ProductSnapshot, filters Filters) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	two := decimal.NewFromInt(2)

	sum := decimal.Zero
	counted := 0
	for _, snap := range snapshots {
		result := scoring.Score(snap, scoring.DefaultBuyCost(snap))

		if filters.MinROIPercent > 0 && result.ROIPercent.LessThan(decimal.NewFromFloat(filters.MinROIPercent)) {
			continue
		}
		if filters.MaxSalesRank > 0 && snap.SalesRank > filters.MaxSalesRank {
			continue
		}

		roi := result.ROIPercent
		if roi.GreaterThan(hundred) {
			roi = hundred
		}
		if roi.IsNegative() {
			roi = decimal.Zero
		}
		sum = sum.Add(roi.Add(result.VelocityScore).Div(two))
		counted++
	}

	if counted == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(counted))).Round(2)
}
