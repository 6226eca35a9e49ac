package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"social/internal/httpx"
)

var rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ratelimit_rejections_total",
	Help: "The total number of requests rejected by a limiter layer",
}, []string{"layer", "route"})

// Middleware applies the global point budget to every request. A counting
// store failure fails open: blocking legitimate traffic on an infrastructure
// error is worse than letting a burst through.
func (l *PointLimiter) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := httpx.ClientIP(r)

			allowed, err := l.Allow(r.Context(), clientID)
			if err != nil {
				log.Error("point limiter unavailable, failing open", "client", clientID, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				rejections.WithLabelValues("points", "global").Inc()
				log.Warn("rate limit exceeded", "client", clientID)
				httpx.TooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware applies the fixed window to the routes it wraps and advertises
// the remaining quota through standard rate-limit headers.
func (l *WindowLimiter) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := httpx.ClientIP(r)

			res, err := l.Allow(r.Context(), clientID)
			if err != nil {
				log.Error("window limiter unavailable, failing open", "route", l.route, "client", clientID, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
			w.Header().Set("RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
			w.Header().Set("RateLimit-Reset", fmt.Sprintf("%d", res.ResetAt.Unix()))

			if !res.Allowed {
				rejections.WithLabelValues("window", l.route).Inc()
				log.Warn("sensitive endpoint rate limit exceeded", "route", l.route, "client", clientID)
				httpx.TooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
