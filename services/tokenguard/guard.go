package tokenguard

import (
	"context"
	"errors"
	"time"

	"github.com/arbitragevault/backend/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds token guard tuning parameters
type Config struct {
	Capacity          int
	RefillPerMinute   float64
	MaxJobTokens      int
	FailureThreshold  int
	Cooldown          time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Guard is the single admission point in front of the pricing API.
// It composes the pre-flight estimator, the token bucket, the circuit
// breaker and the outbound request pacer.
type Guard struct {
	bucket    *Bucket
	breaker   *Breaker
	estimator *Estimator
	pacer     *rate.Limiter
	logger    *zap.Logger
}

// Status is a point-in-time snapshot of the guard for the dashboard
type Status struct {
	TokensRemaining   int          `json:"tokens_remaining"`
	Capacity          int          `json:"capacity"`
	RefillPerMinute   float64      `json:"refill_per_minute"`
	BreakerState      BreakerState `json:"breaker_state"`
	RetryAfterSeconds int          `json:"retry_after_seconds"`
}

// NewGuard creates a Guard from config
func NewGuard(cfg Config, costs EndpointCosts, logger *zap.Logger) *Guard {
	return &Guard{
		bucket:    NewBucket(cfg.Capacity, cfg.RefillPerMinute),
		breaker:   NewBreaker(cfg.FailureThreshold, cfg.Cooldown, logger),
		estimator: NewEstimator(costs, cfg.MaxJobTokens),
		pacer:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:    logger,
	}
}

// AdmitJob runs the pre-flight check for a prospective job: estimates its
// token cost and verifies it against the ceiling, the available balance
// and the breaker state. No network call is made.
func (g *Guard) AdmitJob(plan CallPlan) (Estimate, error) {
	est := g.estimator.Estimate(plan)

	if err := g.breaker.Ready(); err != nil {
		return est, err
	}

	if err := g.estimator.Check(est, g.bucket.Remaining()); err != nil {
		var de *services.DomainError
		if errors.As(err, &de) && de.Type == services.ErrorTypeTokenBudget {
			// no retry hint for a job over the ceiling, waiting never admits it
			if _, overCeiling := de.Details["max_job_tokens"]; !overCeiling {
				wait := g.bucket.TimeToTokens(est.Tokens)
				de.WithDetail("retry_after_seconds", int(wait.Seconds())+1)
			}
		}
		g.logger.Warn("job rejected by pre-flight estimate",
			zap.Int("tokens_required", est.Tokens),
			zap.Int("tokens_remaining", g.bucket.Remaining()))
		return est, err
	}

	return est, nil
}

// Acquire admits one outbound API call costing tokens. It checks the
// breaker, paces the request and debits the bucket, in that order.
func (g *Guard) Acquire(ctx context.Context, tokens int) error {
	if err := g.breaker.Allow(); err != nil {
		return err
	}

	if err := g.pacer.Wait(ctx); err != nil {
		g.breaker.releaseProbe()
		return services.WrapInternal("request pacing interrupted", err)
	}

	if !g.bucket.Take(tokens) {
		g.breaker.releaseProbe()
		remaining := g.bucket.Remaining()
		wait := g.bucket.TimeToTokens(tokens)
		return services.NewDomainError(services.ErrorTypeTokenBudget, "insufficient token budget", nil).
			WithDetail("tokens_remaining", remaining).
			WithDetail("tokens_required", tokens).
			WithDetail("tokens_deficit", tokens-remaining).
			WithDetail("retry_after_seconds", int(wait.Seconds())+1)
	}

	return nil
}

// RecordSuccess feeds a successful API response back into the guard,
// resyncing the bucket from the reported balance and closing the breaker.
func (g *Guard) RecordSuccess(tokensLeft int, refillPerMinute float64) {
	g.bucket.Sync(tokensLeft, refillPerMinute)
	g.breaker.RecordSuccess()
}

// RecordFailure feeds a failed API call into the breaker
func (g *Guard) RecordFailure(err error) {
	g.logger.Warn("pricing API call failed", zap.Error(err))
	g.breaker.RecordFailure()
}

// Estimator exposes the estimator for per-call cost lookups
func (g *Guard) Estimator() *Estimator {
	return g.estimator
}

// Snapshot returns the current guard status
func (g *Guard) Snapshot() Status {
	return Status{
		TokensRemaining:   g.bucket.Remaining(),
		Capacity:          g.bucket.Capacity(),
		RefillPerMinute:   g.bucket.RefillPerMinute(),
		BreakerState:      g.breaker.State(),
		RetryAfterSeconds: int(g.breaker.RetryAfter().Seconds()),
	}
}
