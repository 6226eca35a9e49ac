package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social/internal/auth"
)

type capturedRequest struct {
	Method      string
	Path        string
	ContentType string
	UserID      string
	XFFSet      bool
	Body        []byte
}

// captureBackend records what actually arrived at the backend.
func captureBackend(t *testing.T, status int, last *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*last = capturedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-Type"),
			UserID:      r.Header.Get(auth.TrustHeader),
			XFFSet:      r.Header.Get("X-Forwarded-For") != "",
			Body:        body,
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDispatcher(t *testing.T, routes []Route) (*Dispatcher, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	return New(routes, tokens, slog.Default()), tokens
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func bearer(t *testing.T, tokens *auth.TokenManager, userID string) string {
	t.Helper()
	tok, err := tokens.Access(userID, "tester")
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestDispatchRewritesPathAndInjectsIdentity(t *testing.T) {
	var got capturedRequest
	backend := captureBackend(t, http.StatusOK, &got)

	d, tokens := newTestDispatcher(t, []Route{
		{Name: "post", Prefix: "/v1/posts", Backend: mustURL(t, backend.URL), RequireAuth: true},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/posts/42", nil)
	req.Header.Set("Authorization", bearer(t, tokens, "user-7"))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/posts/42", got.Path)
	assert.Equal(t, "user-7", got.UserID)
	assert.True(t, got.XFFSet)
	assert.Equal(t, "application/json", got.ContentType)
}

func TestDispatchOpenRouteSkipsAuth(t *testing.T) {
	var got capturedRequest
	backend := captureBackend(t, http.StatusCreated, &got)

	d, _ := newTestDispatcher(t, []Route{
		{Name: "identity", Prefix: "/v1/auth", Backend: mustURL(t, backend.URL)},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register",
		strings.NewReader(`{"username":"u"}`))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/auth/register", got.Path)
	assert.Empty(t, got.UserID, "no identity header without a credential")
}

func TestDispatchRejectsMissingOrBadCredential(t *testing.T) {
	var got capturedRequest
	backend := captureBackend(t, http.StatusOK, &got)

	d, _ := newTestDispatcher(t, []Route{
		{Name: "post", Prefix: "/v1/posts", Backend: mustURL(t, backend.URL), RequireAuth: true},
	})

	cases := map[string]string{
		"no header":    "",
		"not a bearer": "Basic abc",
		"garbage":      "Bearer not.a.jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/posts/42", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			d.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, "Authentication required! Please login to continue", body.Message)
		})
	}
}

func TestDispatchExpiredToken(t *testing.T) {
	var got capturedRequest
	backend := captureBackend(t, http.StatusOK, &got)

	expired := auth.NewTokenManager("test-secret", -time.Minute)
	tok, err := expired.Access("user-7", "tester")
	require.NoError(t, err)

	d := New([]Route{
		{Name: "post", Prefix: "/v1/posts", Backend: mustURL(t, backend.URL), RequireAuth: true},
	}, auth.NewTokenManager("test-secret", time.Minute), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/v1/posts/42", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchUnknownRoute(t *testing.T) {
	d, _ := newTestDispatcher(t, []Route{
		{Name: "post", Prefix: "/v1/posts", Backend: mustURL(t, "http://post:8080")},
	})

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatchLongestPrefixWins(t *testing.T) {
	var posts, comments capturedRequest
	postBackend := captureBackend(t, http.StatusOK, &posts)
	commentBackend := captureBackend(t, http.StatusOK, &comments)

	// Registration order must not matter: the more specific prefix wins.
	d, _ := newTestDispatcher(t, []Route{
		{Name: "post", Prefix: "/v1/posts", Backend: mustURL(t, postBackend.URL)},
		{Name: "comments", Prefix: "/v1/posts/comments", Backend: mustURL(t, commentBackend.URL)},
	})

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/posts/comments/9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/posts/comments/9", comments.Path)
	assert.Empty(t, posts.Path)
}

func TestDispatchMultipartPassthrough(t *testing.T) {
	var got capturedRequest
	backend := captureBackend(t, http.StatusOK, &got)

	d, tokens := newTestDispatcher(t, []Route{
		{Name: "media", Prefix: "/v1/media", Backend: mustURL(t, backend.URL), RequireAuth: true},
	})

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/media/upload", strings.NewReader(buf.String()))
	req.Header.Set("Authorization", bearer(t, tokens, "user-7"))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/media/upload", got.Path)
	assert.Equal(t, mw.FormDataContentType(), got.ContentType, "multipart content type must survive the hop")
	assert.Contains(t, string(got.Body), "png-bytes")
}

func TestDispatchBackendErrorPassesThrough(t *testing.T) {
	var got capturedRequest
	backend := captureBackend(t, http.StatusBadRequest, &got)

	d, _ := newTestDispatcher(t, []Route{
		{Name: "identity", Prefix: "/v1/auth", Backend: mustURL(t, backend.URL)},
	})

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "backend status codes are relayed, not rewritten")
}

func TestDispatchBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	d, _ := newTestDispatcher(t, []Route{
		{Name: "identity", Prefix: "/v1/auth", Backend: mustURL(t, backend.URL)},
	})

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Internal server error", body.Message)
	assert.NotEmpty(t, body.Error)
}

func TestRewritePath(t *testing.T) {
	cases := map[string]string{
		"/v1/posts/42":       "/api/posts/42",
		"/v1/auth/login":     "/api/auth/login",
		"/v1":                "/api",
		"/health":            "/health",
		"/api/posts/created": "/api/posts/created",
	}
	for in, want := range cases {
		assert.Equal(t, want, rewritePath(in), in)
	}
}
