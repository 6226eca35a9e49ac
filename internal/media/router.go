package media

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social/internal/auth"
	"social/internal/httpx"
	"social/internal/ratelimit"
)

func NewRouter(h *Handlers, global *ratelimit.PointLimiter, upload *ratelimit.WindowLimiter, log *slog.Logger) http.Handler {
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

		r.Route("/api/media", func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.With(upload.Middleware(log)).Post("/upload", h.UploadMedia)
			r.Get("/", h.GetAllMedia)
		})
	})

	return r
}
