package ratelimit

import (
	"context"
	"fmt"
	"time"

	"tutorjudge/internal/common/cache"
	pkgerrors "tutorjudge/pkg/errors"
)

// FixedWindow enforces per-key request counts in fixed windows on a shared cache.
type FixedWindow struct {
	cache        cache.BasicOps
	window       time.Duration
	cacheTimeout time.Duration
}

func NewFixedWindow(cacheClient cache.BasicOps, window time.Duration, cacheTimeout time.Duration) *FixedWindow {
	if window <= 0 {
		window = time.Minute
	}
	if cacheTimeout <= 0 {
		cacheTimeout = 200 * time.Millisecond
	}
	return &FixedWindow{cache: cacheClient, window: window, cacheTimeout: cacheTimeout}
}

// Allow counts one hit against key and fails with TooManyRequests once max is exceeded.
func (s *FixedWindow) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if s.cache == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = s.window
	}

	ctxCache, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	acquired, err := s.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	var count int64
	if acquired {
		count = 1
	} else {
		count, err = s.cache.Incr(ctxCache, key)
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
		}
		// A key that lost its TTL would never reset.
		ttl, ttlErr := s.cache.TTL(ctxCache, key)
		if ttlErr == nil && ttl == -1 {
			_ = s.cache.Expire(ctxCache, key, window)
		}
	}
	if int(count) > max {
		return pkgerrors.New(pkgerrors.TooManyRequests).
			WithMessage(fmt.Sprintf("rate limit exceeded for %s", key)).
			WithDetail("limit", max).
			WithDetail("window", window.String())
	}
	return nil
}
