package gateway

import (
	"fmt"
	"net/url"

	"social/internal/config"
)

// Routes builds the static route table: every public prefix maps 1:1 to a
// backend, and everything except the identity service requires a verified
// credential.
func Routes(cfg config.Gateway) ([]Route, error) {
	table := []struct {
		name, prefix, backend string
		requireAuth           bool
	}{
		{"identity", "/v1/auth", cfg.IdentityURL, false},
		{"post", "/v1/posts", cfg.PostURL, true},
		{"media", "/v1/media", cfg.MediaURL, true},
		{"search", "/v1/search", cfg.SearchURL, true},
	}

	routes := make([]Route, 0, len(table))
	for _, e := range table {
		u, err := url.Parse(e.backend)
		if err != nil {
			return nil, fmt.Errorf("parse %s backend url: %w", e.name, err)
		}
		routes = append(routes, Route{
			Name:        e.name,
			Prefix:      e.prefix,
			Backend:     u,
			RequireAuth: e.requireAuth,
		})
	}
	return routes, nil
}
