package robots_test

import (
	"testing"

	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/stretchr/testify/assert"
)

// ─── Parse ──────────────────────────────────────────────────────────────────

func TestParse_OnlyWildcardGroupCounts(t *testing.T) {
	t.Parallel()

	body := `
User-agent: Googlebot
Disallow: /google-only

User-agent: *
Disallow: /private
Disallow: /tmp/ # scratch

User-agent: BadBot
Disallow: /
`
	rules := robots.Parse(body)
	assert.Equal(t, []string{"/private", "/tmp/"}, rules.Disallow)
	assert.True(t, rules.Allowed("https://example.com/google-only"))
	assert.False(t, rules.Allowed("https://example.com/private/page"))
	assert.True(t, rules.Allowed("https://example.com/"))
}

func TestParse_SharedGroupAgents(t *testing.T) {
	t.Parallel()

	body := "User-agent: bingbot\nUser-agent: *\nDisallow: /shared\n"
	rules := robots.Parse(body)
	assert.Equal(t, []string{"/shared"}, rules.Disallow)
}

func TestParse_WildcardAndEmptyValues(t *testing.T) {
	t.Parallel()

	body := "user-agent: *\r\nDisallow: /search*q=\r\nDisallow: *.pdf\r\nDisallow:\r\nDisallow: admin\r\n"
	rules := robots.Parse(body)
	assert.Equal(t, []string{"/search", "/", "/admin"}, rules.Disallow)
}

func TestParse_IgnoresNoise(t *testing.T) {
	t.Parallel()

	rules := robots.Parse("# only comments\nnot a directive\nSitemap: https://example.com/sitemap.xml\n")
	assert.True(t, rules.Empty())
}

func TestParse_DirectiveStartsNewGroup(t *testing.T) {
	t.Parallel()

	body := "User-agent: *\nAllow: /\nUser-agent: other\nDisallow: /x\n"
	rules := robots.Parse(body)
	assert.True(t, rules.Empty(), "disallow belongs to the 'other' group only")
}

// ─── Allowed ────────────────────────────────────────────────────────────────

func TestRules_AllowedMatchesPathAndQuery(t *testing.T) {
	t.Parallel()

	rules := robots.Rules{Disallow: []string{"/search?q=", "/cart"}}
	assert.False(t, rules.Allowed("https://example.com/search?q=shoes"))
	assert.True(t, rules.Allowed("https://example.com/search"))
	assert.False(t, rules.Allowed("https://example.com/cart/checkout"))
	assert.False(t, rules.Allowed("https://example.com/cartography"))
	assert.True(t, rules.Allowed("https://example.com/about"))
}

func TestRules_EmptyAllowsEverything(t *testing.T) {
	t.Parallel()
	assert.True(t, robots.Rules{}.Allowed("https://example.com/anything"))
}
