package enumerator

import (
	"context"
	"time"

	"github.com/raysh454/a11yscan/internal/robots"
)

// Enumerator produces up to limit robots-allowed candidate URLs for a site root.
type Enumerator interface {
	Enumerate(ctx context.Context, root string, limit int, rules robots.Rules) ([]string, error)
}

type Config struct {
	MaxDepth         int
	FetchTimeout     time.Duration
	MaxChildSitemaps int
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:         2,
		FetchTimeout:     15 * time.Second,
		MaxChildSitemaps: 10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.MaxChildSitemaps <= 0 {
		c.MaxChildSitemaps = def.MaxChildSitemaps
	}
	return c
}
