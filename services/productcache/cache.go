// Package productcache is a fixed-TTL cache for product snapshots backed
// by Postgres rows. Repeated ASIN lookups within the TTL cost zero API
// tokens.
package productcache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/repositories"
	"go.uber.org/zap"
)

// Cache wraps the product cache repository with TTL semantics
type Cache struct {
	repo   repositories.ProductCacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates a new Cache with the given TTL
func NewCache(repo repositories.ProductCacheRepository, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached snapshot for an ASIN, or false when absent or expired
func (c *Cache) Get(ctx context.Context, asin string) (*models.ProductSnapshot, bool, error) {
	cutoff := time.Now().Add(-c.ttl)
	snapshot, err := c.repo.Get(ctx, asin, cutoff)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return snapshot, true, nil
}

// GetMany partitions asins into cached snapshots and cache misses
func (c *Cache) GetMany(ctx context.Context, asins []string) (map[string]*models.ProductSnapshot, []string, error) {
	hits := make(map[string]*models.ProductSnapshot)
	misses := make([]string, 0)

	for _, asin := range asins {
		snapshot, ok, err := c.Get(ctx, asin)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			hits[asin] = snapshot
		} else {
			misses = append(misses, asin)
		}
	}

	return hits, misses, nil
}

// Put stores a snapshot
func (c *Cache) Put(ctx context.Context, snapshot *models.ProductSnapshot) error {
	return c.repo.Put(ctx, snapshot)
}

// PutMany stores a set of snapshots, logging rather than failing on
// individual write errors: the cache is an optimization, not a store of
// record.
func (c *Cache) PutMany(ctx context.Context, snapshots []models.ProductSnapshot) {
	for i := range snapshots {
		if err := c.repo.Put(ctx, &snapshots[i]); err != nil {
			c.logger.Warn("failed to cache product snapshot",
				zap.String("asin", snapshots[i].ASIN),
				zap.Error(err))
		}
	}
}

// TTL returns the configured time-to-live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// StartPurgeWorker starts a background worker that periodically deletes
// expired rows. Runs until ctx is cancelled.
func (c *Cache) StartPurgeWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("started product cache purge worker",
		zap.Duration("interval", interval),
		zap.Duration("ttl", c.ttl))

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-c.ttl)
			if _, err := c.repo.PurgeExpired(ctx, cutoff); err != nil {
				c.logger.Error("failed to purge expired cache rows", zap.Error(err))
			}
		case <-ctx.Done():
			c.logger.Info("stopping product cache purge worker")
			return
		}
	}
}
