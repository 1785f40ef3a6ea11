// Package ratelimit paces outbound marketplace API calls with per-marketplace
// token buckets so the engine stays inside each provider's quota.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/meschain/sync/internal/domain/integration"
)

// Bucket is a continuously refilling token bucket. Tokens accrue at rate
// tokens per second up to capacity; each outbound call consumes one token.
// A provider 429 penalizes the bucket by pushing the next token into the
// future by the advertised retry-after.
type Bucket struct {
	mu        sync.Mutex
	capacity  float64
	rate      float64 // tokens per second
	tokens    float64
	lastFill  time.Time
	penaltyAt time.Time // no tokens handed out before this instant
}

// NewBucket creates a full bucket. capacity must be >= 1 and rate > 0;
// invalid values are clamped.
func NewBucket(capacity int, rate float64) *Bucket {
	if capacity < 1 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1
	}
	return &Bucket{
		capacity: float64(capacity),
		rate:     rate,
		tokens:   float64(capacity),
		lastFill: time.Now(),
	}
}

// refill accrues tokens since the last fill. Caller must hold mu.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastFill = now
}

// TryAcquire consumes a token without blocking. Returns false when the
// bucket is empty or under penalty.
func (b *Bucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Before(b.penaltyAt) {
		return false
	}
	b.refill(now)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Acquire blocks until a token is available or the context is done. Returns
// ctx.Err() when the context expires first.
func (b *Bucket) Acquire(ctx context.Context) error {
	for {
		wait, ok := b.tryOrWait()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryOrWait attempts to take a token, returning how long to sleep before the
// next attempt when none is available
func (b *Bucket) tryOrWait() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Before(b.penaltyAt) {
		return b.penaltyAt.Sub(now), false
	}
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	// Time until one full token accrues
	wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait, false
}

// Penalize empties the bucket and suspends token hand-out for retryAfter.
// Called when the provider returns 429; a zero retryAfter falls back to one
// full refill interval.
func (b *Bucket) Penalize(retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = time.Duration(1 / b.rate * float64(time.Second))
	}
	b.tokens = 0
	b.lastFill = time.Now()
	until := time.Now().Add(retryAfter)
	if until.After(b.penaltyAt) {
		b.penaltyAt = until
	}
}

// Available reports the current token count, for status endpoints
func (b *Bucket) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Before(b.penaltyAt) {
		return 0
	}
	b.refill(now)
	return int(b.tokens)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Limits configures one marketplace's bucket
type Limits struct {
	Capacity int
	Rate     float64
}

// Registry holds one bucket per marketplace. Marketplaces without explicit
// limits fall back to the default limits.
type Registry struct {
	mu       sync.Mutex
	buckets  map[integration.MarketplaceCode]*Bucket
	limits   map[integration.MarketplaceCode]Limits
	fallback Limits
}

// NewRegistry creates a registry with per-marketplace limits and a fallback
func NewRegistry(limits map[integration.MarketplaceCode]Limits, fallback Limits) *Registry {
	if fallback.Capacity < 1 {
		fallback.Capacity = 10
	}
	if fallback.Rate <= 0 {
		fallback.Rate = 1
	}
	return &Registry{
		buckets:  make(map[integration.MarketplaceCode]*Bucket),
		limits:   limits,
		fallback: fallback,
	}
}

// Bucket returns the bucket for a marketplace, creating it on first use
func (r *Registry) Bucket(code integration.MarketplaceCode) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buckets[code]; ok {
		return b
	}
	l, ok := r.limits[code]
	if !ok {
		l = r.fallback
	}
	b := NewBucket(l.Capacity, l.Rate)
	r.buckets[code] = b
	return b
}
