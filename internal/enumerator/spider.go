package enumerator

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/utils"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Spider is a breadth-first same-host link crawler bounded by depth and a
// candidate limit.
type Spider struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger
}

type spiderHelper struct {
	spider  *Spider
	root    string
	rules   robots.Rules
	limit   int
	depth   map[string]int
	results []string
	queue   []string
}

func NewSpider(cfg Config, wc webclient.WebClient, logger logging.Logger) *Spider {
	return &Spider{
		cfg:    cfg.withDefaults(),
		wc:     wc,
		logger: logging.OrNop(logger).With(logging.F("enumerator", "spider")),
	}
}

func newSpiderHelper(spider *Spider, root string, limit int, rules robots.Rules) (*spiderHelper, error) {
	normalized, err := utils.Normalize(root)
	if err != nil {
		return nil, err
	}

	sh := &spiderHelper{
		spider: spider,
		root:   normalized,
		rules:  rules,
		limit:  limit,
		depth:  map[string]int{},
	}
	if rules.Allowed(normalized) {
		sh.depth[normalized] = 0
		sh.results = append(sh.results, normalized)
		sh.queue = append(sh.queue, normalized)
	}
	return sh, nil
}

// crawlPage returns the raw hrefs of every anchor on target. Non-HTML and
// non-2xx responses yield no links.
func (sh *spiderHelper) crawlPage(ctx context.Context, target string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, sh.spider.cfg.FetchTimeout)
	defer cancel()

	resp, err := sh.spider.wc.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("received %d from target", resp.StatusCode)
	}
	if !strings.Contains(resp.MediaType(), "text/html") {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse %s: %w", target, err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links, nil
}

// appendPages records unseen allowed links and queues them while the parent
// is shallower than MaxDepth. It reports whether the limit was reached.
func (sh *spiderHelper) appendPages(links []string, parentDepth int) bool {
	for _, link := range links {
		normalized, ok := utils.NormalizeAndFilter(sh.root, link)
		if !ok {
			continue
		}
		if _, exists := sh.depth[normalized]; exists {
			continue
		}
		if !sh.rules.Allowed(normalized) {
			continue
		}

		sh.depth[normalized] = parentDepth + 1
		sh.results = append(sh.results, normalized)
		if len(sh.results) >= sh.limit {
			return true
		}
		if parentDepth < sh.spider.cfg.MaxDepth {
			sh.queue = append(sh.queue, normalized)
		}
	}
	return false
}

func (sh *spiderHelper) run(ctx context.Context) error {
	for head := 0; head < len(sh.queue) && len(sh.results) < sh.limit; head++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		current := sh.queue[head]

		links, err := sh.crawlPage(ctx, current)
		if err != nil {
			sh.spider.logger.Debug("error while crawling page",
				logging.F("url", current),
				logging.Err(err))
			continue
		}

		if sh.appendPages(links, sh.depth[current]) {
			break
		}
	}
	return nil
}

// Enumerate crawls from root. Per-page failures are logged and skipped; only
// an invalid root or context cancellation is returned as an error.
func (s *Spider) Enumerate(ctx context.Context, root string, limit int, rules robots.Rules) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	helper, err := newSpiderHelper(s, root, limit, rules)
	if err != nil {
		return nil, err
	}

	if err := helper.run(ctx); err != nil {
		return helper.results, err
	}
	return helper.results, nil
}
