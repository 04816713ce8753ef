package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Origins is a normalized allow-list of scheme://host origins shared by
// CORS and the WebSocket upgrade check.
type Origins struct {
	allowAll bool
	allowed  map[string]struct{}
}

// NewOrigins builds an allow-list. "*" allows every origin.
func NewOrigins(origins []string) *Origins {
	o := &Origins{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			o.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		o.allowed[normalized] = struct{}{}
	}
	return o
}

// Allowed reports whether origin may access the API.
func (o *Origins) Allowed(origin string) bool {
	if o.allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, exists := o.allowed[normalized]
	return exists
}

// CheckOrigin is a websocket.Upgrader CheckOrigin function. Requests without
// an Origin header come from non-browser clients and are accepted.
func (o *Origins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || o.Allowed(origin) {
		return true
	}
	slog.Warn("blocked websocket connection from disallowed origin", "origin", origin)
	return false
}

// CORS adds Access-Control headers for allowed origins and short-circuits OPTIONS requests.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	origins := NewOrigins(allowedOrigins)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && origins.Allowed(origin) {
			// Credentials are allowed, so the origin is echoed instead of "*".
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
