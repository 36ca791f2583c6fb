// Package browser exposes the small slice of headless-browser automation the
// scanner needs, backed by chromedp.
package browser

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("browser closed")

// NavResponse describes the main document response of a navigation.
type NavResponse struct {
	Status   int
	MimeType string
	URL      string
}

// Page is one tab inside an isolated browser context.
type Page interface {
	Navigate(ctx context.Context, url string) (*NavResponse, error)
	WaitNetworkIdle(ctx context.Context, quiet time.Duration) error
	Sleep(ctx context.Context, d time.Duration)
	// Evaluate runs script, awaiting a returned promise, and decodes the result into out (may be nil).
	Evaluate(ctx context.Context, script string, out any) error
	AddScriptTag(ctx context.Context, source string) error
	Content(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	// NewBlankPage opens about:blank in the same browser context with the same request filter.
	NewBlankPage(ctx context.Context) (Page, error)
	SetContent(ctx context.Context, html string) error
	Close() error
}

// RequestFilter returns a non-nil error for requests that must be aborted.
type RequestFilter func(ctx context.Context, rawURL string) error

// Launcher hands out isolated sessions.
type Launcher interface {
	NewSession(ctx context.Context, filter RequestFilter) (Page, error)
	Close() error
}

type Config struct {
	Headless     bool
	NoSandbox    bool
	ExecPath     string
	UserAgent    string
	StartTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Headless:     true,
		NoSandbox:    true,
		StartTimeout: 30 * time.Second,
	}
}
