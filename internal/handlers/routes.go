package handlers

import (
	"database/sql"

	"github.com/go-chi/chi/v5"

	"github.com/marketprobe/marketprobe/internal/abuse"
	"github.com/marketprobe/marketprobe/internal/cache"
	"github.com/marketprobe/marketprobe/internal/config"
	"github.com/marketprobe/marketprobe/internal/geo"
	"github.com/marketprobe/marketprobe/internal/mailer"
	"github.com/marketprobe/marketprobe/internal/ratelimit"
)

// Deps carries everything the route table needs. All fields are required.
type Deps struct {
	DB       *sql.DB
	Cfg      *config.Config
	Limiter  ratelimit.Store
	Domains  *cache.DomainCache
	Geo      *geo.Reader
	Abuse    *abuse.Checker
	Notifier *mailer.Notifier
}

// Routes assembles the full route table. The hostname rewrite runs before
// any routing decision so custom-domain requests land on their /p/ path.
func Routes(d Deps) chi.Router {
	track := &TrackHandler{DB: d.DB, Cfg: d.Cfg, Limiter: d.Limiter, Geo: d.Geo}
	form := &FormHandler{DB: d.DB, Cfg: d.Cfg, Limiter: d.Limiter, Abuse: d.Abuse, Notifier: d.Notifier}
	page := &PageHandler{DB: d.DB}
	project := &ProjectHandler{DB: d.DB, Cfg: d.Cfg, Domains: d.Domains}
	admin := &AdminHandler{DB: d.DB}

	r := chi.NewRouter()
	r.Use(HostnameRewrite(d.DB, d.Cfg, d.Domains))

	r.Post("/track", track.Ingest)
	r.Get("/track", track.Stats)
	r.Post("/leads/{slug}", form.Submit)
	r.Get("/health", admin.Health)

	r.Get("/p/{slug}", page.Get)
	r.Get("/p/{slug}/*", page.Get)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Cfg.APIKey))

		r.Post("/projects", project.Create)
		r.Get("/projects", project.List)
		r.Get("/projects/{id}", project.Get)
		r.Patch("/projects/{id}", project.Update)
		r.Delete("/projects/{id}", project.Delete)
		r.Get("/projects/{id}/config", project.GetPageConfig)
		r.Put("/projects/{id}/config", project.PutPageConfig)
		r.Get("/projects/{id}/qr", project.QRCode)

		r.Get("/submissions", admin.Submissions)
		r.Get("/analytics/detailed", admin.DetailedStats)
		r.Get("/analytics/projects", admin.FleetStats)
		r.Get("/analytics/export", admin.Export)
	})

	return r
}
