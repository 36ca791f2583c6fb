package utils_test

import (
	"testing"

	"github.com/raysh454/a11yscan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Normalize ──────────────────────────────────────────────────────────────

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips tracking and fragment", "https://example.com/about/?utm_source=x&fbclid=abc#section", "https://example.com/about"},
		{"keeps root slash", "https://example.com", "https://example.com/"},
		{"lowercases host", "https://EXAMPLE.com/Path", "https://example.com/Path"},
		{"drops default port", "https://example.com:443/a", "https://example.com/a"},
		{"keeps custom port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"sorts query", "https://example.com/?b=2&a=1", "https://example.com/?a=1&b=2"},
		{"keeps non tracking params", "https://example.com/p?id=3&gclid=z", "https://example.com/p?id=3"},
		{"drops userinfo", "https://user:pw@example.com/", "https://example.com/"},
		{"cleans dot segments", "https://example.com/a/../b/", "https://example.com/b"},
		{"punycode host", "https://bücher.example/", "https://xn--bcher-kva.example/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := utils.Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://example.com/about/?utm_source=x&fbclid=abc#section",
		"https://Example.com:443/a/b/?z=1&a=2&a=1",
		"http://example.com/path%20with%20space/",
		"https://example.com/?flag",
		"https://example.com",
	}
	for _, in := range inputs {
		once, err := utils.Normalize(in)
		require.NoError(t, err, in)
		twice, err := utils.Normalize(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice, in)
	}
}

func TestNormalize_Errors(t *testing.T) {
	t.Parallel()

	_, err := utils.Normalize("")
	assert.ErrorIs(t, err, utils.ErrEmptyURL)

	_, err = utils.Normalize("/relative/only")
	assert.ErrorIs(t, err, utils.ErrMissingHost)
}

func TestCanonicalize_KeepsTrailingSlashWhenAsked(t *testing.T) {
	t.Parallel()

	got, err := utils.Canonicalize("https://example.com/docs/", utils.CanonicalizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs/", got)
}

func TestCanonicalize_Allowlist(t *testing.T) {
	t.Parallel()

	got, err := utils.Canonicalize("https://example.com/?utm_campaign=a&utm_source=b", utils.CanonicalizeOptions{
		DropTrackingParams:     true,
		TrackingParamAllowlist: []string{"utm_campaign"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/?utm_campaign=a", got)
}

// ─── EnsureScheme ───────────────────────────────────────────────────────────

func TestEnsureScheme(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://example.com", utils.EnsureScheme("example.com"))
	assert.Equal(t, "https://example.com:8080/x", utils.EnsureScheme("example.com:8080/x"))
	assert.Equal(t, "https://localhost:3000", utils.EnsureScheme("localhost:3000"))
	assert.Equal(t, "http://example.com", utils.EnsureScheme("  http://example.com "))
	assert.Equal(t, "", utils.EnsureScheme("   "))
}
