package tokenguard

import (
	"math"
	"sync"
	"time"
)

// Bucket tracks the remaining token budget for the external pricing API.
// It refills continuously at a per-minute rate and is resynced from the
// authoritative values the API reports with every response.
type Bucket struct {
	mu           sync.Mutex
	capacity     int
	tokens       float64
	refillPerMin float64
	lastRefill   time.Time
	now          func() time.Time
}

// NewBucket creates a full Bucket with the given capacity and refill rate.
// The bucket starts full; the first API response resyncs it to reality.
func NewBucket(capacity int, refillPerMinute float64) *Bucket {
	b := &Bucket{
		capacity:     capacity,
		tokens:       float64(capacity),
		refillPerMin: refillPerMinute,
		now:          time.Now,
	}
	b.lastRefill = b.now()
	return b
}

// refill credits elapsed-time tokens. Must be called with the lock held.
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += b.refillPerMin * elapsed.Minutes()
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
	b.lastRefill = now
}

// Remaining returns the current whole-token balance
func (b *Bucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return int(b.tokens)
}

// Take removes n tokens from the bucket. Returns false (taking nothing)
// when fewer than n tokens are available.
func (b *Bucket) Take(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if float64(n) > b.tokens {
		return false
	}
	b.tokens -= float64(n)
	return true
}

// Sync overwrites local accounting with the balance and refill rate the
// API reported. The reported balance wins over the local estimate.
func (b *Bucket) Sync(tokensLeft int, refillPerMinute float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tokensLeft < 0 {
		tokensLeft = 0
	}
	if tokensLeft > b.capacity {
		tokensLeft = b.capacity
	}
	b.tokens = float64(tokensLeft)
	if refillPerMinute > 0 {
		b.refillPerMin = refillPerMinute
	}
	b.lastRefill = b.now()
}

// TimeToTokens returns how long until n tokens are available.
// Returns zero when the balance already covers n.
func (b *Bucket) TimeToTokens(n int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	deficit := float64(n) - b.tokens
	if deficit <= 0 {
		return 0
	}
	if b.refillPerMin <= 0 {
		return time.Duration(math.MaxInt64)
	}
	minutes := deficit / b.refillPerMin
	return time.Duration(minutes * float64(time.Minute))
}

// Capacity returns the configured maximum token balance
func (b *Bucket) Capacity() int {
	return b.capacity
}

// RefillPerMinute returns the current refill rate
func (b *Bucket) RefillPerMinute() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refillPerMin
}
