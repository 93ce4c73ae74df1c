// Package ratelimit implements a per-key token bucket with continuous
// refill, the same shape the gateway's Redis limiter used: a replenish rate
// in tokens per second and a burst capacity cap.
package ratelimit

import (
	"sync"
	"time"
)

// Config parametrizes one named limiter.
type Config struct {
	// ReplenishRate is how many tokens a bucket regains per second.
	ReplenishRate float64
	// BurstCapacity caps the tokens a bucket can hold.
	BurstCapacity float64
	// RequestedTokens is the cost of a single request.
	RequestedTokens float64
}

// DefaultConfig is the lenient limiter for general traffic: 20 req/s with a
// burst of 40.
func DefaultConfig() Config {
	return Config{ReplenishRate: 20, BurstCapacity: 40, RequestedTokens: 1}
}

// StrictConfig is bound to the authentication endpoints to blunt credential
// stuffing: 5 req/s with a burst of 10.
func StrictConfig() Config {
	return Config{ReplenishRate: 5, BurstCapacity: 10, RequestedTokens: 1}
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// Limiter holds one bucket per key. The bucket map is guarded by its own
// mutex; each bucket's refill-and-debit is atomic under the bucket lock, so
// concurrent requests for one key never observe a torn (tokens, lastRefill)
// pair.
type Limiter struct {
	cfg     Config
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func New(cfg Config, opts ...Option) *Limiter {
	if cfg.RequestedTokens <= 0 {
		cfg.RequestedTokens = 1
	}

	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: map[string]*bucket{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// Allow debits one request's cost from the key's bucket, reporting whether
// the request may proceed.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, l.cfg.RequestedTokens)
}

// AllowN debits n tokens from the key's bucket. Buckets start full, refill
// continuously at ReplenishRate, and never exceed BurstCapacity or drop
// below zero.
func (l *Limiter) AllowN(key string, n float64) bool {
	b := l.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.cfg.ReplenishRate
		if b.tokens > l.cfg.BurstCapacity {
			b.tokens = l.cfg.BurstCapacity
		}
		b.lastRefill = now
	}

	if b.tokens < n {
		return false
	}

	b.tokens -= n
	return true
}

// Tokens reports the key's current balance without debiting. Diagnostics
// helper; the balance may be stale the moment it returns.
func (l *Limiter) Tokens(key string) float64 {
	b := l.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := l.now().Sub(b.lastRefill).Seconds()
	tokens := b.tokens + elapsed*l.cfg.ReplenishRate
	if tokens > l.cfg.BurstCapacity {
		tokens = l.cfg.BurstCapacity
	}
	return tokens
}

func (l *Limiter) bucketFor(key string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     l.cfg.BurstCapacity,
			lastRefill: l.now(),
		}
		l.buckets[key] = b
	}
	return b
}
