package enumerator

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/url"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/utils"
	"github.com/raysh454/a11yscan/internal/webclient"
)

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// sitemapDocument covers both <urlset> and <sitemapindex> roots.
type sitemapDocument struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

// ParseSitemap returns the page locations of a urlset and the child sitemap
// locations of a sitemapindex.
func ParseSitemap(body []byte) (pages []string, children []string, err error) {
	var doc sitemapDocument
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode sitemap: %w", err)
	}
	switch doc.XMLName.Local {
	case "urlset":
		for _, u := range doc.URLs {
			if u.Loc != "" {
				pages = append(pages, u.Loc)
			}
		}
	case "sitemapindex":
		for _, s := range doc.Sitemaps {
			if s.Loc != "" {
				children = append(children, s.Loc)
			}
		}
	default:
		return nil, nil, fmt.Errorf("unexpected sitemap root <%s>", doc.XMLName.Local)
	}
	return pages, children, nil
}

// SitemapReader collects candidates from {origin}/sitemap.xml, descending one
// level into sitemap indexes.
type SitemapReader struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger
}

func NewSitemapReader(cfg Config, wc webclient.WebClient, logger logging.Logger) *SitemapReader {
	return &SitemapReader{
		cfg:    cfg.withDefaults(),
		wc:     wc,
		logger: logging.OrNop(logger).With(logging.F("enumerator", "sitemap")),
	}
}

// Enumerate never fails on fetch or parse problems; those yield no candidates.
func (sr *SitemapReader) Enumerate(ctx context.Context, root string, limit int, rules robots.Rules) ([]string, error) {
	base, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("parse root: %w", err)
	}
	sitemapURL := base.Scheme + "://" + base.Host + "/sitemap.xml"

	pages, children := sr.fetch(ctx, sitemapURL)
	for i, child := range children {
		if i >= sr.cfg.MaxChildSitemaps || len(pages) >= limit {
			break
		}
		if !utils.SameHost(root, child) {
			continue
		}
		more, _ := sr.fetch(ctx, child)
		pages = append(pages, more...)
	}

	seen := make(map[string]struct{}, len(pages))
	var collected []string
	for _, raw := range pages {
		normalized, ok := utils.NormalizeAndFilter(root, raw)
		if !ok || !rules.Allowed(normalized) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		collected = append(collected, normalized)
		if len(collected) >= limit {
			break
		}
	}

	sr.logger.Debug("sitemap candidates collected",
		logging.F("sitemap", sitemapURL),
		logging.F("count", len(collected)))
	return collected, nil
}

func (sr *SitemapReader) fetch(ctx context.Context, target string) (pages, children []string) {
	ctx, cancel := context.WithTimeout(ctx, sr.cfg.FetchTimeout)
	defer cancel()

	resp, err := sr.wc.Get(ctx, target)
	if err != nil {
		sr.logger.Debug("sitemap fetch failed", logging.F("url", target), logging.Err(err))
		return nil, nil
	}
	if !resp.OK() {
		return nil, nil
	}
	pages, children, err = ParseSitemap(resp.Body)
	if err != nil {
		sr.logger.Warn("sitemap parse failed", logging.F("url", target), logging.Err(err))
		return nil, nil
	}
	return pages, children
}
