package tokenguard

import (
	"sync"
	"time"

	"github.com/arbitragevault/backend/services"
	"go.uber.org/zap"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// Breaker is a circuit breaker around the external pricing API.
// After failureThreshold consecutive failures it opens and fails fast for
// the cool-down window, then half-opens to admit a single probe. A probe
// success closes the breaker; a probe failure re-opens it.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	cooldown         time.Duration

	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool

	logger *zap.Logger
	now    func() time.Time
}

// NewBreaker creates a closed Breaker
func NewBreaker(failureThreshold int, cooldown time.Duration, logger *zap.Logger) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            StateClosed,
		logger:           logger,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While half-open, exactly one
// in-flight probe is admitted; all other callers fail fast.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return b.openError()
		}
		// Cool-down elapsed, half-open and admit this caller as the probe
		b.state = StateHalfOpen
		b.probeInFlight = true
		b.logger.Info("circuit breaker half-open, admitting probe")
		return nil

	case StateHalfOpen:
		if b.probeInFlight {
			return b.openError()
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

// Ready reports whether a call would currently be admitted, without
// reserving the half-open probe slot. Used by pre-flight checks.
func (b *Breaker) Ready() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return b.openError()
		}
	case StateHalfOpen:
		if b.probeInFlight {
			return b.openError()
		}
	}
	return nil
}

// releaseProbe frees a reserved probe slot when the admitted call was
// abandoned before reaching the network.
func (b *Breaker) releaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false
}

// RecordSuccess records a successful call, closing the breaker from half-open
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.logger.Info("circuit breaker closed after successful probe")
	}
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.probeInFlight = false
}

// RecordFailure records a failed call. A half-open probe failure re-opens
// immediately; in closed state the breaker opens once the consecutive
// failure count reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.open()
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.open()
		}
	}
}

// open transitions to the open state. Must be called with the lock held.
func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.probeInFlight = false
	b.logger.Warn("circuit breaker opened",
		zap.Int("consecutive_failures", b.consecutiveFailures),
		zap.Duration("cooldown", b.cooldown))
}

// openError builds the fail-fast error. Must be called with the lock held.
func (b *Breaker) openError() error {
	retryAfter := b.retryAfterLocked()
	return services.NewDomainError(services.ErrorTypeCircuitOpen, "pricing API circuit breaker is open", nil).
		WithDetail("retry_after_seconds", int(retryAfter.Seconds())+1)
}

// State returns the current breaker state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RetryAfter returns how long until the breaker will admit a probe.
// Returns zero when calls are currently admitted.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retryAfterLocked()
}

func (b *Breaker) retryAfterLocked() time.Duration {
	if b.state != StateOpen {
		return 0
	}
	remaining := b.cooldown - b.now().Sub(b.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
