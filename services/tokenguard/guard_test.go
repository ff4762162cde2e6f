package tokenguard

import (
	"context"
	"testing"
	"time"

	"github.com/arbitragevault/backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestGuard(t *testing.T, cfg Config) *Guard {
	if cfg.RequestsPerSecond == 0 {
		// Keep tests fast; pacing behavior is covered by x/time/rate itself
		cfg.RequestsPerSecond = 1000
		cfg.Burst = 1000
	}
	return NewGuard(cfg, DefaultEndpointCosts(), zaptest.NewLogger(t))
}

func TestGuard_AdmitJob(t *testing.T) {
	t.Run("admits affordable plan", func(t *testing.T) {
		g := newTestGuard(t, Config{
			Capacity:         300,
			RefillPerMinute:  5,
			MaxJobTokens:     200,
			FailureThreshold: 5,
			Cooldown:         time.Minute,
		})

		est, err := g.AdmitJob(CallPlan{ASINs: 50})
		require.NoError(t, err)
		assert.Equal(t, 50, est.Tokens)
	})

	t.Run("rejects plan above ceiling", func(t *testing.T) {
		g := newTestGuard(t, Config{
			Capacity:         1000,
			RefillPerMinute:  5,
			MaxJobTokens:     100,
			FailureThreshold: 5,
			Cooldown:         time.Minute,
		})

		_, err := g.AdmitJob(CallPlan{ASINs: 30, WithOffers: true})
		require.Error(t, err)
		assert.True(t, services.IsTokenBudgetError(err))

		// A ceiling rejection is permanent, no retry hint applies
		details := services.GetErrorDetails(err)
		require.NotNil(t, details)
		assert.Equal(t, 100, details["max_job_tokens"])
		assert.NotContains(t, details, "retry_after_seconds")
	})

	t.Run("rejects plan when balance is short and advises retry", func(t *testing.T) {
		g := newTestGuard(t, Config{
			Capacity:         300,
			RefillPerMinute:  5,
			FailureThreshold: 5,
			Cooldown:         time.Minute,
		})

		// Drain most of the bucket first
		require.NoError(t, g.Acquire(context.Background(), 280))

		_, err := g.AdmitJob(CallPlan{ASINs: 100})
		require.Error(t, err)
		assert.True(t, services.IsTokenBudgetError(err))

		details := services.GetErrorDetails(err)
		require.NotNil(t, details)
		assert.Equal(t, 20, details["tokens_remaining"])
		assert.Equal(t, 100, details["tokens_required"])
		assert.Equal(t, 80, details["tokens_deficit"])
		// 80 token deficit at 5/min is about 16 minutes
		assert.InDelta(t, 960, details["retry_after_seconds"], 1)
	})

	t.Run("fails fast while breaker is open", func(t *testing.T) {
		g := newTestGuard(t, Config{
			Capacity:         300,
			RefillPerMinute:  5,
			FailureThreshold: 1,
			Cooldown:         time.Minute,
		})

		g.RecordFailure(assert.AnError)

		_, err := g.AdmitJob(CallPlan{ASINs: 1})
		require.Error(t, err)
		assert.True(t, services.IsCircuitOpenError(err))
	})
}

func TestGuard_Acquire(t *testing.T) {
	t.Run("debits the bucket", func(t *testing.T) {
		g := newTestGuard(t, Config{
			Capacity:         300,
			RefillPerMinute:  5,
			FailureThreshold: 5,
			Cooldown:         time.Minute,
		})

		require.NoError(t, g.Acquire(context.Background(), 120))
		assert.Equal(t, 180, g.Snapshot().TokensRemaining)
	})

	t.Run("refuses when the bucket is short", func(t *testing.T) {
		g := newTestGuard(t, Config{
			Capacity:         100,
			RefillPerMinute:  5,
			FailureThreshold: 5,
			Cooldown:         time.Minute,
		})

		err := g.Acquire(context.Background(), 150)
		require.Error(t, err)
		assert.True(t, services.IsTokenBudgetError(err))

		details := services.GetErrorDetails(err)
		require.NotNil(t, details)
		assert.Equal(t, 100, details["tokens_remaining"])
		assert.Equal(t, 150, details["tokens_required"])
		assert.Equal(t, 50, details["tokens_deficit"])
	})

	t.Run("fails fast while breaker is open", func(t *testing.T) {
		g := newTestGuard(t, Config{
			Capacity:         300,
			RefillPerMinute:  5,
			FailureThreshold: 1,
			Cooldown:         time.Minute,
		})

		g.RecordFailure(assert.AnError)

		err := g.Acquire(context.Background(), 1)
		require.Error(t, err)
		assert.True(t, services.IsCircuitOpenError(err))
		// A rejected call must not debit tokens
		assert.Equal(t, 300, g.Snapshot().TokensRemaining)
	})

	t.Run("cancelled context interrupts pacing", func(t *testing.T) {
		g := NewGuard(Config{
			Capacity:          300,
			RefillPerMinute:   5,
			FailureThreshold:  5,
			Cooldown:          time.Minute,
			RequestsPerSecond: 0.001,
			Burst:             1,
		}, DefaultEndpointCosts(), zaptest.NewLogger(t))

		// First call consumes the burst, second blocks on the pacer
		require.NoError(t, g.Acquire(context.Background(), 1))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := g.Acquire(ctx, 1)
		require.Error(t, err)
		assert.True(t, services.IsInternalError(err))
	})
}

func TestGuard_RecordSuccess(t *testing.T) {
	g := newTestGuard(t, Config{
		Capacity:         300,
		RefillPerMinute:  5,
		FailureThreshold: 1,
		Cooldown:         time.Minute,
	})

	g.RecordFailure(assert.AnError)
	assert.Equal(t, StateOpen, g.Snapshot().BreakerState)

	// Resyncs the bucket from the provider balance and heals the breaker
	g.RecordSuccess(42, 20)

	status := g.Snapshot()
	assert.Equal(t, 42, status.TokensRemaining)
	assert.Equal(t, 20.0, status.RefillPerMinute)
	assert.Equal(t, StateClosed, status.BreakerState)
	assert.Equal(t, 0, status.RetryAfterSeconds)
}

func TestGuard_Snapshot(t *testing.T) {
	g := newTestGuard(t, Config{
		Capacity:         300,
		RefillPerMinute:  5,
		FailureThreshold: 1,
		Cooldown:         time.Minute,
	})

	status := g.Snapshot()
	assert.Equal(t, 300, status.TokensRemaining)
	assert.Equal(t, 300, status.Capacity)
	assert.Equal(t, 5.0, status.RefillPerMinute)
	assert.Equal(t, StateClosed, status.BreakerState)
	assert.Equal(t, 0, status.RetryAfterSeconds)

	g.RecordFailure(assert.AnError)

	status = g.Snapshot()
	assert.Equal(t, StateOpen, status.BreakerState)
	assert.Greater(t, status.RetryAfterSeconds, 0)
}
