package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social/internal/httpx"
	"social/internal/ratelimit"
)

// NewRouter wraps the dispatcher with the gateway-wide admission layers:
// the global point budget plus a broad fixed window over all public routes.
func NewRouter(d *Dispatcher, global *ratelimit.PointLimiter, window *ratelimit.WindowLimiter, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequestLogger(log))
		r.Use(global.Middleware(log))
		r.Use(window.Middleware(log))

		r.Handle("/v1/*", d)
	})

	return r
}
