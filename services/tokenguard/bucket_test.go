package tokenguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock gives tests control over bucket time
type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestBucket(capacity int, refillPerMinute float64) (*Bucket, *fakeClock) {
	clock := newFakeClock()
	b := &Bucket{
		capacity:     capacity,
		tokens:       float64(capacity),
		refillPerMin: refillPerMinute,
		now:          clock.now,
	}
	b.lastRefill = clock.now()
	return b, clock
}

func TestBucket_StartsFull(t *testing.T) {
	b, _ := newTestBucket(300, 5)
	assert.Equal(t, 300, b.Remaining())
	assert.Equal(t, 300, b.Capacity())
}

func TestBucket_Take(t *testing.T) {
	t.Run("takes when balance covers cost", func(t *testing.T) {
		b, _ := newTestBucket(100, 5)

		assert.True(t, b.Take(40))
		assert.Equal(t, 60, b.Remaining())
	})

	t.Run("refuses without taking when balance too low", func(t *testing.T) {
		b, _ := newTestBucket(100, 5)

		assert.True(t, b.Take(90))
		assert.False(t, b.Take(20))
		// Failed take must not debit anything
		assert.Equal(t, 10, b.Remaining())
	})

	t.Run("takes exact balance", func(t *testing.T) {
		b, _ := newTestBucket(100, 5)

		assert.True(t, b.Take(100))
		assert.Equal(t, 0, b.Remaining())
	})
}

func TestBucket_Refill(t *testing.T) {
	t.Run("refills at the configured rate", func(t *testing.T) {
		b, clock := newTestBucket(300, 5)
		assert.True(t, b.Take(300))

		clock.advance(10 * time.Minute)
		assert.Equal(t, 50, b.Remaining())
	})

	t.Run("never exceeds capacity", func(t *testing.T) {
		b, clock := newTestBucket(300, 5)
		assert.True(t, b.Take(10))

		clock.advance(24 * time.Hour)
		assert.Equal(t, 300, b.Remaining())
	})

	t.Run("partial minute credits fractional tokens", func(t *testing.T) {
		b, clock := newTestBucket(300, 5)
		assert.True(t, b.Take(300))

		clock.advance(30 * time.Second)
		// 2.5 tokens accrued, whole-token balance is 2
		assert.Equal(t, 2, b.Remaining())
	})
}

func TestBucket_Sync(t *testing.T) {
	t.Run("reported balance wins over local estimate", func(t *testing.T) {
		b, _ := newTestBucket(300, 5)
		assert.True(t, b.Take(100))

		b.Sync(42, 5)
		assert.Equal(t, 42, b.Remaining())
	})

	t.Run("updates refill rate when reported", func(t *testing.T) {
		b, _ := newTestBucket(300, 5)

		b.Sync(100, 20)
		assert.Equal(t, 20.0, b.RefillPerMinute())
	})

	t.Run("ignores non-positive refill rate", func(t *testing.T) {
		b, _ := newTestBucket(300, 5)

		b.Sync(100, 0)
		assert.Equal(t, 5.0, b.RefillPerMinute())
	})

	t.Run("clamps reported balance to capacity", func(t *testing.T) {
		b, _ := newTestBucket(300, 5)

		b.Sync(9999, 5)
		assert.Equal(t, 300, b.Remaining())

		b.Sync(-5, 5)
		assert.Equal(t, 0, b.Remaining())
	})
}

func TestBucket_TimeToTokens(t *testing.T) {
	t.Run("zero when balance already covers", func(t *testing.T) {
		b, _ := newTestBucket(300, 5)
		assert.Equal(t, time.Duration(0), b.TimeToTokens(100))
	})

	t.Run("deficit divided by refill rate", func(t *testing.T) {
		b, _ := newTestBucket(300, 5)
		assert.True(t, b.Take(300))

		// 50 token deficit at 5/min is 10 minutes
		assert.Equal(t, 10*time.Minute, b.TimeToTokens(50))
	})
}
