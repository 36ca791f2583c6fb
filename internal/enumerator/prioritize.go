package enumerator

import (
	"net/url"
	"sort"
	"strings"

	"github.com/raysh454/a11yscan/internal/utils"
)

type keywordWeight struct {
	token string
	score int
}

// Ordered; the first token contained in the path wins.
var keywordWeights = []keywordWeight{
	{"/contact", 100},
	{"/inquiry", 95},
	{"/form", 90},
	{"/about", 85},
	{"/company", 82},
	{"/service", 80},
	{"/services", 80},
	{"/product", 78},
	{"/products", 78},
	{"/menu", 75},
	{"/reservation", 73},
	{"/booking", 73},
	{"/news", 70},
	{"/blog", 70},
}

const rootBonus = 1000

// URLScore rates a normalized candidate against a normalized root.
func URLScore(root, candidate string) int {
	u, err := url.Parse(candidate)
	if err != nil {
		return 0
	}
	p := strings.ToLower(u.EscapedPath())
	if p == "" {
		p = "/"
	}

	score := 0
	if candidate == root {
		score += rootBonus
	}
	for _, kw := range keywordWeights {
		if strings.Contains(p, kw.token) {
			score += kw.score
			break
		}
	}

	depth := 0
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			depth++
		}
	}
	score += max(0, 40-depth*5)
	score += max(0, 30-len(p))
	return score
}

// Prioritize de-duplicates candidates by normalized URL, ranks them by
// URLScore (ties broken lexicographically) and returns at most maxPages
// entries with the root first.
func Prioritize(rootURL string, urls []string, maxPages int) []string {
	return PrioritizeAllowed(rootURL, urls, maxPages, nil)
}

// PrioritizeAllowed is Prioritize with candidates rejected by allowed
// removed before the budget is applied. The root is only forced in when
// allowed accepts it. A nil allowed accepts everything.
func PrioritizeAllowed(rootURL string, urls []string, maxPages int, allowed func(string) bool) []string {
	if allowed == nil {
		allowed = func(string) bool { return true }
	}
	root, err := utils.Normalize(rootURL)
	if err != nil {
		return nil
	}
	if maxPages < 1 {
		maxPages = 1
	}

	type scored struct {
		url   string
		score int
	}
	seen := make(map[string]struct{}, len(urls)+1)
	ranked := make([]scored, 0, len(urls)+1)
	for _, raw := range urls {
		n, err := utils.Normalize(raw)
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if !allowed(n) {
			continue
		}
		ranked = append(ranked, scored{url: n, score: URLScore(root, n)})
	}
	if _, ok := seen[root]; !ok && allowed(root) {
		ranked = append(ranked, scored{url: root, score: URLScore(root, root)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].url < ranked[j].url
	})

	if len(ranked) > maxPages {
		ranked = ranked[:maxPages]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.url
	}
	return out
}
