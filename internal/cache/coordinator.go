// Package cache keeps per-service read caches no more than one event hop
// behind the source of truth: cache-aside reads plus group invalidation
// triggered by local writes and by bus events describing remote writes.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "The total number of cache hits",
	}, []string{"namespace"})
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "The total number of cache misses",
	}, []string{"namespace"})
	invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_invalidated_keys_total",
		Help: "The total number of keys removed by invalidation",
	}, []string{"namespace"})
)

type Coordinator struct {
	store Store
	log   *slog.Logger
}

func NewCoordinator(store Store, log *slog.Logger) *Coordinator {
	return &Coordinator{store: store, log: log}
}

// namespace is the invalidation group: everything before the first colon.
func namespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// GetOrCompute is the cache-aside read path. On a hit the stored value is
// returned unchanged; on a miss compute runs against the source of truth and
// the result is stored under key with the given TTL. Concurrent misses for
// the same key are not collapsed: each caller computes and stores the same
// result, which is idempotent but a thundering-herd risk under load.
// Store failures degrade to computing every time, never to a request error.
func GetOrCompute[T any](ctx context.Context, c *Coordinator, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	ns := namespace(key)

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Error("cache lookup failed", "key", key, "error", err)
	}
	if found {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			cacheHits.WithLabelValues(ns).Inc()
			return cached, nil
		}
		// Unreadable entry, fall through to the authoritative read.
		c.log.Error("cache entry corrupt", "key", key)
	}
	cacheMisses.WithLabelValues(ns).Inc()

	result, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := c.store.Set(ctx, key, raw, ttl); err != nil {
			// The caller already has the value; a failed write just means
			// the next read computes again.
			c.log.Error("cache store failed", "key", key, "error", err)
		}
	}
	return result, nil
}

// InvalidatePost removes the single-item key for id plus every listing key.
// Called synchronously on a local write before the HTTP response goes out,
// and from remote-event handlers before the event is acknowledged.
// Failures are logged and swallowed: the keys stay stale until TTL expiry.
func (c *Coordinator) InvalidatePost(ctx context.Context, id string) {
	if err := c.store.Del(ctx, KeyPost(id)); err != nil {
		c.log.Error("post cache invalidation failed", "post_id", id, "error", err)
	}
	n, err := c.store.DelPrefix(ctx, PostListPrefix)
	if err != nil {
		c.log.Error("post list cache invalidation failed", "error", err)
		return
	}
	invalidations.WithLabelValues("posts").Add(float64(n + 1))
	c.log.Info("post cache invalidated", "post_id", id, "listing_keys", n)
}

// InvalidateQueries drops every cached search result.
func (c *Coordinator) InvalidateQueries(ctx context.Context) {
	n, err := c.store.DelPrefix(ctx, QueryPrefix)
	if err != nil {
		c.log.Error("query cache invalidation failed", "error", err)
		return
	}
	invalidations.WithLabelValues("query").Add(float64(n))
	if n > 0 {
		c.log.Info("search cache invalidated", "keys", n)
	}
}
