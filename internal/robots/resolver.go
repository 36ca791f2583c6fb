package robots

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/webclient"
)

const DefaultFetchTimeout = 10 * time.Second

// Resolver fetches {origin}/robots.txt through a guarded web client.
type Resolver struct {
	client  webclient.WebClient
	logger  logging.Logger
	timeout time.Duration
}

func NewResolver(client webclient.WebClient, logger logging.Logger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Resolver{
		client:  client,
		logger:  logging.OrNop(logger).With(logging.F("component", "robots")),
		timeout: timeout,
	}
}

// Resolve never fails: any fetch error, non-2xx status or non-text/plain
// content type yields empty rules.
func (r *Resolver) Resolve(ctx context.Context, rootURL string) Rules {
	root, err := url.Parse(rootURL)
	if err != nil || root.Host == "" {
		r.logger.Warn("robots skipped for unparseable root", logging.F("root", rootURL))
		return Rules{}
	}
	robotsURL := root.Scheme + "://" + root.Host + "/robots.txt"

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.Get(ctx, robotsURL)
	if err != nil {
		r.logger.Warn("robots fetch failed", logging.F("robots_url", robotsURL), logging.Err(err))
		return Rules{}
	}
	if !resp.OK() {
		r.logger.Debug("robots not available", logging.F("robots_url", robotsURL), logging.F("status", resp.StatusCode))
		return Rules{}
	}
	if ct := strings.ToLower(resp.Headers.Get("Content-Type")); ct != "" && !strings.Contains(ct, "text/plain") {
		r.logger.Debug("robots ignored for content type", logging.F("robots_url", robotsURL), logging.F("content_type", ct))
		return Rules{}
	}

	rules := Parse(string(resp.Body))
	r.logger.Debug("robots resolved", logging.F("robots_url", robotsURL), logging.F("disallow", len(rules.Disallow)))
	return rules
}
