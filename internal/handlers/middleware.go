package handlers

import (
	"crypto/subtle"
	"database/sql"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/marketprobe/marketprobe/internal/cache"
	"github.com/marketprobe/marketprobe/internal/config"
	"github.com/marketprobe/marketprobe/internal/models"
)

func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Paths the hostname router must never touch: endpoints meant for direct
// access regardless of which domain the request arrived on.
var passthroughPrefixes = []string{
	"/api/", "/track", "/leads/", "/admin/", "/health", "/static/", "/p/",
}

// HostnameRewrite maps a custom domain onto its project's public page path.
// A request for pricing on custom.example.com becomes /p/{slug}/pricing with
// the query string intact. Lookup failures never block the request; the
// original path falls through to default routing.
func HostnameRewrite(db *sql.DB, cfg *config.Config, domains *cache.DomainCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if skipRewrite(path) {
				next.ServeHTTP(w, r)
				return
			}

			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			host = strings.ToLower(host)

			if cfg.IsMainDomain(host) {
				next.ServeHTTP(w, r)
				return
			}

			project, found := domains.Get(host)
			if !found {
				var err error
				project, err = models.GetProjectByDomain(db, host)
				if err != nil {
					if err != sql.ErrNoRows {
						log.Printf("hostname: lookup %q failed: %v", host, err)
					}
					next.ServeHTTP(w, r)
					return
				}
				domains.Set(host, project)
			}

			if project.Status != models.StatusActive {
				next.ServeHTTP(w, r)
				return
			}

			if path == "/" {
				path = ""
			}
			r.URL.Path = "/p/" + project.Slug + path
			next.ServeHTTP(w, r)
		})
	}
}

func skipRewrite(path string) bool {
	for _, prefix := range passthroughPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	// Static assets and anything else with a file extension.
	return strings.Contains(path, ".")
}
