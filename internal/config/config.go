package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultIPHashSalt is used when MARKETPROBE_IP_HASH_SALT is unset. Hashes
// remain deterministic but are comparable across deployments that also run
// unsalted, so production should always set its own salt.
const DefaultIPHashSalt = "marketprobe-default-salt"

type Config struct {
	Port       string
	DBPath     string
	APIKey     string
	MainDomain string
	IPHashSalt string
	GeoIPPath  string

	DomainCacheSize int
	DomainCacheTTL  time.Duration

	FormRateLimit      int
	AnalyticsRateLimit int
	RateLimitWindow    time.Duration
	SweepInterval      time.Duration

	MailBufferSize int
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPassword   string
	MailFrom       string
	NotifyTo       []string

	AbuseLists bool
}

func Load() (*Config, error) {
	apiKey := os.Getenv("MARKETPROBE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("MARKETPROBE_API_KEY is required")
	}

	mainDomain := os.Getenv("MARKETPROBE_MAIN_DOMAIN")
	if mainDomain == "" {
		return nil, fmt.Errorf("MARKETPROBE_MAIN_DOMAIN is required")
	}

	var notifyTo []string
	for _, addr := range strings.Split(os.Getenv("MARKETPROBE_NOTIFY_TO"), ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			notifyTo = append(notifyTo, addr)
		}
	}

	cfg := &Config{
		Port:       envOrDefault("MARKETPROBE_PORT", "8080"),
		DBPath:     envOrDefault("MARKETPROBE_DB_PATH", "./marketprobe.db"),
		APIKey:     apiKey,
		MainDomain: strings.ToLower(mainDomain),
		IPHashSalt: envOrDefault("MARKETPROBE_IP_HASH_SALT", DefaultIPHashSalt),
		GeoIPPath:  os.Getenv("MARKETPROBE_GEOIP_PATH"),

		DomainCacheSize: parseInt("MARKETPROBE_DOMAIN_CACHE_SIZE", 1000),
		DomainCacheTTL:  parseDuration("MARKETPROBE_DOMAIN_CACHE_TTL", time.Minute),

		FormRateLimit:      parseInt("MARKETPROBE_FORM_RATE_LIMIT", 5),
		AnalyticsRateLimit: parseInt("MARKETPROBE_ANALYTICS_RATE_LIMIT", 100),
		RateLimitWindow:    parseDuration("MARKETPROBE_RATE_LIMIT_WINDOW", time.Minute),
		SweepInterval:      parseDuration("MARKETPROBE_SWEEP_INTERVAL", 5*time.Minute),

		MailBufferSize: parseInt("MARKETPROBE_MAIL_BUFFER_SIZE", 100),
		SMTPHost:       os.Getenv("MARKETPROBE_SMTP_HOST"),
		SMTPPort:       envOrDefault("MARKETPROBE_SMTP_PORT", "587"),
		SMTPUser:       os.Getenv("MARKETPROBE_SMTP_USER"),
		SMTPPassword:   os.Getenv("MARKETPROBE_SMTP_PASSWORD"),
		MailFrom:       os.Getenv("MARKETPROBE_MAIL_FROM"),
		NotifyTo:       notifyTo,

		AbuseLists: os.Getenv("MARKETPROBE_ABUSE_LISTS") == "1",
	}

	if cfg.DomainCacheSize <= 0 {
		return nil, fmt.Errorf("MARKETPROBE_DOMAIN_CACHE_SIZE must be positive")
	}
	if cfg.DomainCacheTTL <= 0 {
		return nil, fmt.Errorf("MARKETPROBE_DOMAIN_CACHE_TTL must be positive")
	}
	if cfg.FormRateLimit <= 0 || cfg.AnalyticsRateLimit <= 0 {
		return nil, fmt.Errorf("rate limits must be positive")
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("MARKETPROBE_RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.MailBufferSize <= 0 {
		return nil, fmt.Errorf("MARKETPROBE_MAIL_BUFFER_SIZE must be positive")
	}

	return cfg, nil
}

// IsMainDomain reports whether host (already lowercased, port stripped) is the
// deployment's own domain or a local development host.
func (c *Config) IsMainDomain(host string) bool {
	if host == c.MainDomain {
		return true
	}
	return strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
