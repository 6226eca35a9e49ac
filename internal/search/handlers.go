package search

import (
	"context"
	"log/slog"
	"net/http"

	"social/internal/cache"
	"social/internal/httpx"
)

// Searcher is what the HTTP handler needs from the repository.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Document, error)
}

const resultLimit = 10

type Handlers struct {
	repo  Searcher
	cache *cache.Coordinator
	log   *slog.Logger
}

func NewHandlers(repo Searcher, coordinator *cache.Coordinator, log *slog.Logger) *Handlers {
	return &Handlers{repo: repo, cache: coordinator, log: log}
}

func (h *Handlers) SearchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		httpx.Fail(w, http.StatusBadRequest, "Search query is required")
		return
	}

	results, err := cache.GetOrCompute(r.Context(), h.cache, cache.KeyQuery(query), cache.QueryTTL,
		func(ctx context.Context) ([]Document, error) {
			return h.repo.Search(ctx, query, resultLimit)
		})
	if err != nil {
		h.log.Error("error while searching posts", "query", query, "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Error while searching post")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, results)
}
