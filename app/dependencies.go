package app

import (
	"context"
	"fmt"

	"github.com/arbitragevault/backend/config"
	"github.com/arbitragevault/backend/middleware"
	"github.com/arbitragevault/backend/repositories"
	"github.com/arbitragevault/backend/repositories/postgres"
	"github.com/arbitragevault/backend/services/auth"
	"github.com/arbitragevault/backend/services/autosourcing"
	"github.com/arbitragevault/backend/services/batch"
	"github.com/arbitragevault/backend/services/keepa"
	"github.com/arbitragevault/backend/services/niche"
	"github.com/arbitragevault/backend/services/productcache"
	"github.com/arbitragevault/backend/services/tokenguard"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Token budget protection
	Guard *tokenguard.Guard

	// Pricing API
	Keepa *keepa.Client
	Cache *productcache.Cache

	// Domain services
	AuthService         *auth.Service
	BatchService        *batch.Service
	NicheService        *niche.Service
	AutosourcingService *autosourcing.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initGuard(cfg)
	deps.initServices(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	// Test the connection
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()
	d.Logger.Info("repositories initialized")
}

// initGuard initializes the token guard from config
func (d *Dependencies) initGuard(cfg *config.Config) {
	d.Guard = tokenguard.NewGuard(tokenguard.Config{
		Capacity:          cfg.TokenGuard.Capacity,
		RefillPerMinute:   cfg.TokenGuard.RefillPerMinute,
		MaxJobTokens:      cfg.TokenGuard.MaxJobTokens,
		FailureThreshold:  cfg.TokenGuard.FailureThreshold,
		Cooldown:          cfg.TokenGuard.Cooldown,
		RequestsPerSecond: cfg.TokenGuard.RequestsPerSecond,
		Burst:             cfg.TokenGuard.Burst,
	}, tokenguard.DefaultEndpointCosts(), d.Logger)

	d.Logger.Info("token guard initialized",
		zap.Int("capacity", cfg.TokenGuard.Capacity),
		zap.Float64("refill_per_minute", cfg.TokenGuard.RefillPerMinute),
		zap.Int("max_job_tokens", cfg.TokenGuard.MaxJobTokens))
}

// initServices initializes the pricing client, cache and domain services
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Keepa = keepa.NewClient(cfg.Keepa, d.Guard, d.Logger)
	d.Cache = productcache.NewCache(d.Repos.ProductCache, cfg.TokenGuard.CacheTTL, d.Logger)

	d.AuthService = auth.NewService(d.Repos.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.AuthService, d.Logger)

	d.BatchService = batch.NewService(
		d.Repos.Batches,
		d.Repos.Analyses,
		d.TxManager,
		d.Guard,
		d.Keepa,
		d.Cache,
		d.Logger,
	)
	d.NicheService = niche.NewService(d.Repos.Niches, d.Guard, d.Keepa, d.Cache, d.Logger)
	d.AutosourcingService = autosourcing.NewService(d.Repos.Autosourcing, d.Guard, d.Keepa, d.Cache, d.Logger)

	d.Logger.Info("services initialized")
}

// StartWorkers starts the background workers. They run until ctx is
// cancelled.
func (d *Dependencies) StartWorkers(ctx context.Context) {
	go d.Cache.StartPurgeWorker(ctx, d.Config.TokenGuard.CachePurgeEvery)
	go d.AutosourcingService.StartWorker(ctx, d.Config.Autosourcing.TickInterval)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
