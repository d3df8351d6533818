package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/marketprobe/marketprobe/internal/abuse"
	"github.com/marketprobe/marketprobe/internal/cache"
	"github.com/marketprobe/marketprobe/internal/config"
	"github.com/marketprobe/marketprobe/internal/db"
	"github.com/marketprobe/marketprobe/internal/geo"
	"github.com/marketprobe/marketprobe/internal/handlers"
	"github.com/marketprobe/marketprobe/internal/mailer"
	"github.com/marketprobe/marketprobe/internal/ratelimit"
)

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	geoReader, err := geo.Open(cfg.GeoIPPath)
	if err != nil {
		log.Printf("geo: %v (country lookups disabled)", err)
		geoReader, _ = geo.Open("")
	}
	defer geoReader.Close()

	limiter := ratelimit.New()
	stopSweeper := limiter.StartSweeper(cfg.SweepInterval)

	domains := cache.New(cfg.DomainCacheSize, cfg.DomainCacheTTL)

	notifier := mailer.NewNotifier(mailer.NewSender(cfg), cfg.NotifyTo, cfg.MailBufferSize)

	checker := abuse.NewChecker(cfg.AbuseLists)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Mount("/", handlers.Routes(handlers.Deps{
		DB:       database,
		Cfg:      cfg,
		Limiter:  limiter,
		Domains:  domains,
		Geo:      geoReader,
		Abuse:    checker,
		Notifier: notifier,
	}))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("marketprobe listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	stopSweeper()
	notifier.Shutdown()
	checker.Shutdown()
	log.Println("goodbye")
}
