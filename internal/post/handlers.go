package post

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"social/internal/auth"
	"social/internal/cache"
	"social/internal/events"
	"social/internal/httpx"
)

// Store is what the handlers need from the post repository.
type Store interface {
	Create(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id string) (*Post, error)
	List(ctx context.Context, offset, limit int) ([]Post, error)
	Count(ctx context.Context) (int, error)
	DeleteOwned(ctx context.Context, id, userID string) (*Post, error)
}

// Publisher is the slice of the event bus the post service uses.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Handlers struct {
	store    Store
	cache    *cache.Coordinator
	bus      Publisher
	validate *validator.Validate
	log      *slog.Logger
}

func NewHandlers(store Store, coordinator *cache.Coordinator, bus Publisher, log *slog.Logger) *Handlers {
	return &Handlers{
		store:    store,
		cache:    coordinator,
		bus:      bus,
		validate: validator.New(),
		log:      log,
	}
}

type createPostRequest struct {
	Content  string   `json:"content" validate:"required,min=3,max=5000"`
	MediaIDs []string `json:"mediaIds"`
}

func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.log.Warn("post validation failed", "error", err)
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &Post{
		ID:        uuid.NewString(),
		UserID:    auth.UserID(r.Context()),
		Content:   req.Content,
		MediaIDs:  req.MediaIDs,
		CreatedAt: time.Now().UTC(),
	}
	if p.MediaIDs == nil {
		p.MediaIDs = []string{}
	}

	if err := h.store.Create(r.Context(), p); err != nil {
		h.log.Error("error creating post", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Error creating post")
		return
	}

	// Tell the other services, then drop our own stale entries, both before
	// the response, so the writing service reads its own write.
	err := h.bus.Publish(r.Context(), events.PostCreated, events.PostCreatedPayload{
		PostID:    p.ID,
		UserID:    p.UserID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		// The post exists; a lost event means remote caches stay stale
		// until TTL. Logged, not surfaced.
		h.log.Error("failed to publish post.created", "post_id", p.ID, "error", err)
	}
	h.cache.InvalidatePost(r.Context(), p.ID)

	h.log.Info("post created", "post_id", p.ID, "user_id", p.UserID)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Post created successfully",
		"postId":  p.ID,
	})
}

func (h *Handlers) GetAllPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	key := cache.KeyPostList(page, limit)
	result, err := cache.GetOrCompute(r.Context(), h.cache, key, cache.ListTTL,
		func(ctx context.Context) (ListResult, error) {
			posts, err := h.store.List(ctx, (page-1)*limit, limit)
			if err != nil {
				return ListResult{}, err
			}
			total, err := h.store.Count(ctx)
			if err != nil {
				return ListResult{}, err
			}
			return ListResult{
				Success:     true,
				Posts:       posts,
				CurrentPage: page,
				TotalPages:  (total + limit - 1) / limit,
				TotalPosts:  total,
			}, nil
		})
	if err != nil {
		h.log.Error("error fetching posts", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Error fetching posts")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := cache.GetOrCompute(r.Context(), h.cache, cache.KeyPost(id), cache.PostTTL,
		func(ctx context.Context) (*Post, error) {
			return h.store.GetByID(ctx, id)
		})
	if errors.Is(err, ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.log.Error("error fetching post", "post_id", id, "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Error fetching post")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := auth.UserID(r.Context())

	p, err := h.store.DeleteOwned(r.Context(), id, userID)
	if errors.Is(err, ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.log.Error("error deleting post", "post_id", id, "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Error deleting post")
		return
	}

	err = h.bus.Publish(r.Context(), events.PostDeleted, events.PostDeletedPayload{
		PostID:   p.ID,
		UserID:   userID,
		MediaIDs: p.MediaIDs,
	})
	if err != nil {
		h.log.Error("failed to publish post.deleted", "post_id", id, "error", err)
	}
	h.cache.InvalidatePost(r.Context(), id)

	h.log.Info("post deleted", "post_id", id, "user_id", userID)
	httpx.OK(w, "Post deleted successfully")
}
