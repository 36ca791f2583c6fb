package server

import (
	"time"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/logging"
)

// DefaultMaxBodyBytes caps the JSON body of POST /api/scans.
const DefaultMaxBodyBytes = 16 * 1024

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// AllowedOrigins are hosts (host[:port]) accepted in the Origin header in
	// addition to the request's own Host.
	AllowedOrigins []string

	// Submissions allowed per client within RateLimitWindow.
	RateLimitWindow time.Duration
	RateLimitMax    int

	MaxBodyBytes int64

	Logger logging.Logger
}

// ConfigFrom derives the server settings from the application config.
func ConfigFrom(cfg *app.Config, logger logging.Logger) Config {
	if cfg == nil {
		cfg = app.DefaultConfig()
	}
	return Config{
		ListenAddr:      cfg.ListenAddr,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		Logger:          logger,
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = time.Minute
	}
	if c.RateLimitMax <= 0 {
		c.RateLimitMax = 5
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	c.Logger = logging.OrNop(c.Logger)
}
