// Package gateway is the single public entry point: it authenticates callers,
// rewrites the public path prefix and forwards requests to exactly one
// backend, injecting the verified identity as a trusted header.
package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"social/internal/auth"
	"social/internal/httpx"
)

// Route maps a public path prefix to one backend. Loaded once at startup,
// immutable thereafter.
type Route struct {
	Name        string
	Prefix      string
	Backend     *url.URL
	RequireAuth bool
}

type route struct {
	Route
	proxy *httputil.ReverseProxy
}

type Dispatcher struct {
	routes []route
	tokens *auth.TokenManager
	log    *slog.Logger
}

// New builds the dispatcher from the static route table. Routes are matched
// by longest registered prefix.
func New(routes []Route, tokens *auth.TokenManager, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{tokens: tokens, log: log}
	for _, rt := range routes {
		d.routes = append(d.routes, route{Route: rt, proxy: d.newProxy(rt)})
	}
	sort.Slice(d.routes, func(i, j int) bool {
		return len(d.routes[i].Prefix) > len(d.routes[j].Prefix)
	})
	return d
}

func (d *Dispatcher) newProxy(rt Route) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(rt.Backend)
			pr.Out.URL.Path = rewritePath(pr.In.URL.Path)
			pr.Out.URL.RawPath = ""
			pr.SetXForwarded()

			// Multipart uploads pass through untouched, raw body included;
			// everything else is normalized to JSON.
			if !strings.HasPrefix(pr.In.Header.Get("Content-Type"), "multipart/form-data") {
				pr.Out.Header.Set("Content-Type", "application/json")
			}
			if userID := auth.UserID(pr.In.Context()); userID != "" {
				pr.Out.Header.Set(auth.TrustHeader, userID)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			d.log.Info("response received from backend", "backend", rt.Name, "status", resp.StatusCode)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			// A transport failure reaching the backend must never escape as
			// an unhandled fault; it becomes a uniform 500.
			d.log.Error("proxy error", "backend", rt.Name, "error", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, httpx.Envelope{
				Success: false,
				Message: "Internal server error",
				Error:   err.Error(),
			})
		},
	}
}

// rewritePath drops the public version prefix and substitutes the internal
// API prefix: /v1/posts/42 -> /api/posts/42.
func rewritePath(path string) string {
	if strings.HasPrefix(path, "/v1") {
		return "/api" + strings.TrimPrefix(path, "/v1")
	}
	return path
}

func (d *Dispatcher) match(path string) (route, bool) {
	for _, rt := range d.routes {
		if strings.HasPrefix(path, rt.Prefix) {
			return rt, true
		}
	}
	return route{}, false
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.match(r.URL.Path)
	if !ok {
		httpx.Fail(w, http.StatusNotFound, "Route not found")
		return
	}

	if rt.RequireAuth {
		claims, err := d.authenticate(r)
		if err != nil {
			httpx.Fail(w, http.StatusUnauthorized, "Authentication required! Please login to continue")
			return
		}
		r = r.WithContext(auth.WithUserID(r.Context(), claims.UserID))
	}

	rt.proxy.ServeHTTP(w, r)
}

func (d *Dispatcher) authenticate(r *http.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, fmt.Errorf("missing bearer token")
	}
	return d.tokens.Verify(token)
}
