package webclient

import "time"

// Config controls the safe fetcher used for robots.txt, sitemaps and crawl pages.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
	UserAgent    string
}

func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		MaxRedirects: 5,
		MaxBodyBytes: 5 << 20,
		UserAgent:    "a11yscan/1.0 (+accessibility scanner)",
	}
}
