package netguard_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/raysh454/a11yscan/internal/netguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResolver map[string][]string

func (m mapResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := m[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, s := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(s)})
	}
	return out, nil
}

// ─── IsForbiddenHost ────────────────────────────────────────────────────────

func TestIsForbiddenHost(t *testing.T) {
	t.Parallel()

	forbidden := []string{
		"127.0.0.1", "10.0.0.1", "localhost", "::1", "[::1]",
		"LOCALHOST", "app.localhost", "0.0.0.0", "169.254.169.254",
		"172.16.5.4", "172.31.255.255", "192.168.1.1", "::",
		"fd12:3456::1", "fe80::1", "::ffff:127.0.0.1", "::ffff:10.1.2.3", "",
	}
	for _, h := range forbidden {
		assert.True(t, netguard.IsForbiddenHost(h), h)
	}

	allowed := []string{
		"93.184.216.34", "example.com", "172.32.0.1", "8.8.8.8",
		"2606:2800:220:1:248:1893:25c8:1946", "::ffff:93.184.216.34",
	}
	for _, h := range allowed {
		assert.False(t, netguard.IsForbiddenHost(h), h)
	}
}

// ─── Guard ──────────────────────────────────────────────────────────────────

func TestGuard_CheckHost(t *testing.T) {
	t.Parallel()

	res := mapResolver{
		"example.com":  {"93.184.216.34"},
		"internal.dev": {"93.184.216.34", "10.0.0.7"},
		"v6.internal":  {"fd00::1"},
	}
	g := netguard.NewGuard(netguard.DefaultConfig(), res, nil)
	ctx := context.Background()

	require.NoError(t, g.CheckHost(ctx, "example.com"))
	require.NoError(t, g.CheckHost(ctx, "93.184.216.34"))

	assert.ErrorIs(t, g.CheckHost(ctx, "internal.dev"), netguard.ErrForbiddenHost)
	assert.ErrorIs(t, g.CheckHost(ctx, "v6.internal"), netguard.ErrForbiddenHost)
	assert.ErrorIs(t, g.CheckHost(ctx, "127.0.0.1"), netguard.ErrForbiddenHost)
	assert.ErrorIs(t, g.CheckHost(ctx, "missing.example"), netguard.ErrResolveFailed)
}

func TestGuard_CheckURL(t *testing.T) {
	t.Parallel()

	g := netguard.NewGuard(netguard.DefaultConfig(), mapResolver{"example.com": {"93.184.216.34"}}, nil)
	ctx := context.Background()

	require.NoError(t, g.CheckURL(ctx, "https://example.com/about"))
	assert.ErrorIs(t, g.CheckURL(ctx, "ftp://example.com/"), netguard.ErrUnsupportedScheme)
	assert.ErrorIs(t, g.CheckURL(ctx, "http://localhost:8080/"), netguard.ErrForbiddenHost)
	assert.ErrorIs(t, g.CheckURL(ctx, "http://[::1]/"), netguard.ErrForbiddenHost)
}

func TestGuard_AllowPrivate(t *testing.T) {
	t.Parallel()

	g := netguard.NewGuard(netguard.Config{AllowPrivate: true}, mapResolver{}, nil)
	assert.NoError(t, g.CheckURL(context.Background(), "http://127.0.0.1:3000/"))
	assert.NoError(t, g.DialControl("tcp", "127.0.0.1:3000", nil))
}

func TestGuard_DialControl(t *testing.T) {
	t.Parallel()

	g := netguard.NewGuard(netguard.DefaultConfig(), nil, nil)
	assert.NoError(t, g.DialControl("tcp4", "93.184.216.34:443", nil))
	assert.ErrorIs(t, g.DialControl("tcp4", "192.168.0.10:80", nil), netguard.ErrForbiddenHost)
	assert.ErrorIs(t, g.DialControl("tcp6", "[::ffff:127.0.0.1]:80", nil), netguard.ErrForbiddenHost)
}
