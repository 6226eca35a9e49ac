// Package ratelimit implements the two admission-control layers that sit in
// front of every route: a global per-client point budget over a sliding
// window, and per-route fixed windows for sensitive endpoints. Both layers
// share one Redis counting store so limiter state survives restarts and is
// consistent across instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PointLimiter is layer A: every request consumes one point from a
// per-client budget that continuously ages out over the window.
type PointLimiter struct {
	rdb    *redis.Client
	points int
	window time.Duration
}

func NewPointLimiter(rdb *redis.Client, points int, window time.Duration) *PointLimiter {
	return &PointLimiter{rdb: rdb, points: points, window: window}
}

// Allow records one consumption for clientID and reports whether the budget
// still covers it. Sliding-log accounting: old entries are aged out, the
// remainder counted, and the new consumption recorded only if it fits.
func (l *PointLimiter) Allow(ctx context.Context, clientID string) (bool, error) {
	key := "ratelimit:points:" + clientID
	now := time.Now()
	cutoff := now.Add(-l.window)

	if err := l.rdb.ZRemRangeByScore(ctx, key,
		"0", fmt.Sprintf("%d", cutoff.UnixNano())).Err(); err != nil {
		return false, fmt.Errorf("ratelimit trim %q: %w", clientID, err)
	}

	count, err := l.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit count %q: %w", clientID, err)
	}
	if count >= int64(l.points) {
		return false, nil
	}

	pipe := l.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit consume %q: %w", clientID, err)
	}
	return true, nil
}

// Result describes one fixed-window admission decision, with everything the
// standard rate-limit response headers need.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// WindowLimiter is layer B: a per-route fixed window counting requests per
// client over a longer interval. Counts reset at window boundaries.
type WindowLimiter struct {
	rdb    *redis.Client
	route  string
	limit  int
	window time.Duration
}

func NewWindowLimiter(rdb *redis.Client, route string, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{rdb: rdb, route: route, limit: limit, window: window}
}

// Allow counts this request against the client's current window.
func (l *WindowLimiter) Allow(ctx context.Context, clientID string) (Result, error) {
	now := time.Now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)

	key := fmt.Sprintf("ratelimit:window:%s:%s:%d", l.route, clientID, windowStart.Unix())

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit incr %q: %w", key, err)
	}
	if count == 1 {
		// First hit in this window owns setting the expiry. The extra
		// window keeps the key around past the boundary for observability.
		if err := l.rdb.Expire(ctx, key, 2*l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("ratelimit expire %q: %w", key, err)
		}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
