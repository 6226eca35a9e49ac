package post

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social/internal/auth"
	"social/internal/cache"
	"social/internal/events"
)

type fakeStore struct {
	posts map[string]*Post
	fail  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{posts: make(map[string]*Post)}
}

func (s *fakeStore) Create(ctx context.Context, p *Post) error {
	if s.fail {
		return fmt.Errorf("insert failed")
	}
	cp := *p
	s.posts[p.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) List(ctx context.Context, offset, limit int) ([]Post, error) {
	all := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []Post{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *fakeStore) Count(ctx context.Context) (int, error) {
	return len(s.posts), nil
}

func (s *fakeStore) DeleteOwned(ctx context.Context, id, userID string) (*Post, error) {
	p, ok := s.posts[id]
	if !ok || p.UserID != userID {
		return nil, ErrNotFound
	}
	delete(s.posts, id)
	return p, nil
}

type published struct {
	RoutingKey string
	Payload    any
}

type fakeBus struct {
	events []published
	err    error
}

func (b *fakeBus) Publish(ctx context.Context, routingKey string, payload any) error {
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, published{RoutingKey: routingKey, Payload: payload})
	return nil
}

type fixture struct {
	store  *fakeStore
	bus    *fakeBus
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newFakeStore()
	bus := &fakeBus{}
	h := NewHandlers(store, cache.NewCoordinator(cache.NewRedisStore(client), slog.Default()), bus, slog.Default())

	r := chi.NewRouter()
	r.Route("/api/posts", func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/create-post", h.CreatePost)
		r.Get("/all-posts", h.GetAllPosts)
		r.Get("/{id}", h.GetPost)
		r.Delete("/{id}", h.DeletePost)
	})
	return &fixture{store: store, bus: bus, router: r}
}

func (f *fixture) do(method, target, userID string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if userID != "" {
		req.Header.Set(auth.TrustHeader, userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/posts/create-post", "u1",
		`{"content":"hello world","mediaIds":["m1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		PostID  string `json:"postId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Post created successfully", resp.Message)
	require.NotEmpty(t, resp.PostID)

	stored := f.store.posts[resp.PostID]
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "hello world", stored.Content)

	require.Len(t, f.bus.events, 1)
	assert.Equal(t, events.PostCreated, f.bus.events[0].RoutingKey)
	payload := f.bus.events[0].Payload.(events.PostCreatedPayload)
	assert.Equal(t, resp.PostID, payload.PostID)
	assert.Equal(t, "u1", payload.UserID)
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]string{
		"not json":  `{`,
		"missing":   `{}`,
		"too short": `{"content":"ab"}`,
		"too long":  fmt.Sprintf(`{"content":%q}`, strings.Repeat("x", 5001)),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/posts/create-post", "u1", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.bus.events, "rejected requests must not publish")
		})
	}
}

func TestCreatePostRequiresIdentity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/posts/create-post", "", `{"content":"hello world"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreatePostPublishFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.bus.err = fmt.Errorf("broker gone")

	rec := f.do(http.MethodPost, "/api/posts/create-post", "u1", `{"content":"hello world"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, "a lost event never fails the write")
	assert.Len(t, f.store.posts, 1)
}

func TestReadYourOwnWrite(t *testing.T) {
	f := newFixture(t)

	// Warm the listing cache with an empty result.
	rec := f.do(http.MethodGet, "/api/posts/all-posts", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	require.Empty(t, empty.Posts)

	rec = f.do(http.MethodPost, "/api/posts/create-post", "u1", `{"content":"hello world"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// The write invalidated the listing before responding, so the next read
	// must see the new post.
	rec = f.do(http.MethodGet, "/api/posts/all-posts", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var after ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	require.Len(t, after.Posts, 1)
	assert.Equal(t, "hello world", after.Posts[0].Content)
	assert.Equal(t, 1, after.TotalPosts)
}

func TestGetPost(t *testing.T) {
	f := newFixture(t)
	f.store.posts["p1"] = &Post{ID: "p1", UserID: "u1", Content: "cached?", CreatedAt: time.Now().UTC()}

	rec := f.do(http.MethodGet, "/api/posts/p1", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "cached?", got.Content)

	// Served from cache now: mutating the store directly is not visible.
	f.store.posts["p1"].Content = "changed behind the cache"
	rec = f.do(http.MethodGet, "/api/posts/p1", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "cached?", got.Content)
}

func TestGetPostNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/posts/nope", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAllPostsPagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("p%02d", i)
		f.store.posts[id] = &Post{
			ID: id, UserID: "u1", Content: id,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
	}

	rec := f.do(http.MethodGet, "/api/posts/all-posts?page=2&limit=10", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Posts, 10)
	assert.Equal(t, 2, res.CurrentPage)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 25, res.TotalPosts)

	// Out-of-range parameters are clamped, not rejected.
	rec = f.do(http.MethodGet, "/api/posts/all-posts?page=0&limit=9999", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.CurrentPage)
	assert.Len(t, res.Posts, 10)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	f.store.posts["p1"] = &Post{ID: "p1", UserID: "u1", MediaIDs: []string{"m1", "m2"}}

	// Warm the single-item cache.
	rec := f.do(http.MethodGet, "/api/posts/p1", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodDelete, "/api/posts/p1", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.bus.events, 1)
	assert.Equal(t, events.PostDeleted, f.bus.events[0].RoutingKey)
	payload := f.bus.events[0].Payload.(events.PostDeletedPayload)
	assert.Equal(t, "p1", payload.PostID)
	assert.Equal(t, []string{"m1", "m2"}, payload.MediaIDs, "attachments travel with the event")

	// Invalidation means the next read misses the cache and sees the delete.
	rec = f.do(http.MethodGet, "/api/posts/p1", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePostOwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	f.store.posts["p1"] = &Post{ID: "p1", UserID: "u1"}

	rec := f.do(http.MethodDelete, "/api/posts/p1", "u2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "someone else's post looks absent")
	assert.Empty(t, f.bus.events)
	assert.Contains(t, f.store.posts, "p1")
}
