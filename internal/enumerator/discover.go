package enumerator

import (
	"context"
	"fmt"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/utils"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Discoverer tries the sitemap first and falls back to crawling.
type Discoverer struct {
	sitemap Enumerator
	spider  Enumerator
	logger  logging.Logger
}

func NewDiscoverer(cfg Config, wc webclient.WebClient, logger logging.Logger) *Discoverer {
	logger = logging.OrNop(logger)
	return &Discoverer{
		sitemap: NewSitemapReader(cfg, wc, logger),
		spider:  NewSpider(cfg, wc, logger),
		logger:  logger.With(logging.F("component", "discovery")),
	}
}

// NewDiscovererWith wires custom strategies.
func NewDiscovererWith(sitemap, spider Enumerator, logger logging.Logger) *Discoverer {
	return &Discoverer{
		sitemap: sitemap,
		spider:  spider,
		logger:  logging.OrNop(logger).With(logging.F("component", "discovery")),
	}
}

// CandidateBudget is the number of candidates gathered for a page budget.
func CandidateBudget(pageBudget int) int {
	if pageBudget < 1 {
		pageBudget = 1
	}
	return max(pageBudget*4, pageBudget)
}

// Discover returns robots-allowed candidate URLs for rootURL.
func (d *Discoverer) Discover(ctx context.Context, rootURL string, pageBudget int, rules robots.Rules) ([]string, error) {
	root, err := utils.Normalize(rootURL)
	if err != nil {
		return nil, fmt.Errorf("normalize root: %w", err)
	}
	limit := CandidateBudget(pageBudget)

	fromSitemap, err := d.sitemap.Enumerate(ctx, root, limit, rules)
	if err != nil {
		d.logger.Warn("sitemap discovery failed", logging.F("root", root), logging.Err(err))
	}
	if len(fromSitemap) > 0 {
		out := make([]string, 0, len(fromSitemap)+1)
		seen := map[string]struct{}{}
		if rules.Allowed(root) {
			out = append(out, root)
			seen[root] = struct{}{}
		}
		for _, u := range fromSitemap {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
		d.logger.Info("candidates discovered",
			logging.F("root", root), logging.F("source", "sitemap"), logging.F("count", len(out)))
		return out, nil
	}

	crawled, err := d.spider.Enumerate(ctx, root, limit, rules)
	if err != nil {
		return crawled, fmt.Errorf("crawl %s: %w", root, err)
	}
	d.logger.Info("candidates discovered",
		logging.F("root", root), logging.F("source", "crawl"), logging.F("count", len(crawled)))
	return crawled, nil
}
