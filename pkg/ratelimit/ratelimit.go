// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kms.
//
// go-kms is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package ratelimit throttles reconnection attempts, one token bucket per
// validator address.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default reconnect budget used when Config leaves the fields zero.
const (
	DefaultAttemptsPerMinute = 12
	DefaultBurst             = 1
)

// Limiter hands out reconnect permits per key.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	enabled  bool
}

// Config configures a Limiter.
type Config struct {
	// Enabled turns throttling on. A disabled limiter never blocks.
	Enabled bool

	// AttemptsPerMinute is the sustained number of attempts allowed per key.
	AttemptsPerMinute int

	// Burst is the number of attempts allowed back to back.
	Burst int
}

// New creates a limiter. A nil config yields a disabled limiter.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{}
	}

	perMinute := config.AttemptsPerMinute
	if perMinute <= 0 {
		perMinute = DefaultAttemptsPerMinute
	}
	burst := config.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		enabled:  config.Enabled,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow reports whether an attempt for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if !l.enabled {
		return true
	}
	return l.get(key).Allow()
}

// Wait blocks until an attempt for key may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.enabled {
		return ctx.Err()
	}
	return l.get(key).Wait(ctx)
}

// Forget drops the bucket for key, so that the next attempt starts with a
// full burst.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}

// IsEnabled reports whether throttling is on.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}

// Stats returns the limiter settings and the number of tracked keys.
func (l *Limiter) Stats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"enabled":      l.enabled,
		"active_keys":  len(l.limiters),
		"rate_per_min": float64(l.rate) * 60,
		"burst":        l.burst,
	}
}
