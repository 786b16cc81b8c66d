// Package ratelimit gates outbound provider calls with one token bucket per
// provider. It is the only gate between an adapter and the network; cache
// hits never pass through it.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"business-advisor/internal/common/config"
	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/common/metrics"
)

// Limiter holds independently tuned buckets per provider id. Buckets are
// created lazily from config; providers configured with a zero rate are not
// gated at all (local datasets).
type Limiter struct {
	cfgs   map[string]config.RateLimitConfig
	logger logger.Logger

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func New(cfgs map[string]config.RateLimitConfig, log logger.Logger) *Limiter {
	return &Limiter{
		cfgs:    cfgs,
		logger:  log.With(map[string]interface{}{"component": "ratelimit"}),
		buckets: make(map[string]*rate.Limiter),
	}
}

// Acquire blocks until a token is available for providerID, bounded by the
// provider's configured max wait and the caller's context. Returns
// RATE_LIMIT_EXCEEDED when the bound elapses first.
func (l *Limiter) Acquire(ctx context.Context, providerID string) error {
	cfg, gated := l.cfgs[providerID]
	if !gated || cfg.Rate <= 0 {
		return nil
	}

	bucket := l.bucket(providerID, cfg)

	waitCtx := ctx
	if cfg.MaxWaitMs > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, config.GetDuration(cfg.MaxWaitMs))
		defer cancel()
	}

	if err := bucket.Wait(waitCtx); err != nil {
		// The caller's own deadline expiring is a timeout, not a rate
		// rejection.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.RateLimitRejections.WithLabelValues(providerID).Inc()
		l.logger.Warn("token wait exceeded bound", map[string]interface{}{
			"provider":  providerID,
			"maxWaitMs": cfg.MaxWaitMs,
		})
		return apperrors.NewRateLimitExceededError(providerID)
	}
	return nil
}

func (l *Limiter) bucket(providerID string, cfg config.RateLimitConfig) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[providerID]
	if !ok {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		b = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
		l.buckets[providerID] = b
	}
	return b
}

// Allow reports whether a token is immediately available without consuming
// wait time. Used by tests to probe the bucket bound.
func (l *Limiter) Allow(providerID string) bool {
	cfg, gated := l.cfgs[providerID]
	if !gated || cfg.Rate <= 0 {
		return true
	}
	return l.bucket(providerID, cfg).Allow()
}
