package auth

import (
	"context"
	"net/http"

	"social/internal/httpx"
)

// TrustHeader carries the verified caller identity from the gateway to the
// backends. Backends treat it as authoritative and never re-verify the
// credential; the header must therefore never be accepted from outside the
// gateway's network boundary.
const TrustHeader = "X-User-Id"

type ctxKey int

const userIDKey ctxKey = 0

// WithUserID returns a context carrying the verified caller identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID extracts the caller identity placed by the auth middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// RequireUser is the backend-side middleware: it reads the trust header set
// by the gateway and rejects requests that arrive without one.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(TrustHeader)
		if userID == "" {
			httpx.Fail(w, http.StatusUnauthorized, "Authentication required! Please login to continue")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
