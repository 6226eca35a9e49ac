// Package httpx holds the small HTTP plumbing every service shares: the JSON
// response envelope, client identification and request logging.
package httpx

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// Envelope is the response contract shared by all services.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

func Fail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message})
}

// TooManyRequests writes the rate-limit rejection contract. Both limiter
// layers produce this exact body.
func TooManyRequests(w http.ResponseWriter) {
	Fail(w, http.StatusTooManyRequests, "Too many requests")
}

// ClientIP returns the client identifier used for rate limiting: the first
// X-Forwarded-For hop when present, the remote address otherwise.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
