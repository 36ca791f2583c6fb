// Package netguard keeps outbound traffic away from loopback, private and
// link-local networks. Every fetch and every browser request goes through it.
package netguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
)

var (
	ErrForbiddenHost     = errors.New("forbidden host")
	ErrResolveFailed     = errors.New("host resolution failed")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

var forbiddenPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("255.255.255.255/32"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsForbiddenAddr reports whether addr is loopback, private, link-local or unspecified.
// IPv4-mapped IPv6 addresses are checked as IPv4.
func IsForbiddenAddr(addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	addr = addr.Unmap()
	for _, p := range forbiddenPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IsForbiddenHost performs the literal check only: localhost names and IP
// literals in forbidden ranges. Hostnames are not resolved.
func IsForbiddenHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	h = strings.TrimSuffix(h, ".")
	if h == "" {
		return true
	}
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	if i := strings.IndexByte(h, '%'); i >= 0 {
		h = h[:i]
	}
	addr, err := netip.ParseAddr(h)
	if err != nil {
		return false
	}
	return IsForbiddenAddr(addr)
}

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type Config struct {
	// AllowPrivate disables every check. Only for local demo and test setups.
	AllowPrivate   bool
	ResolveTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{ResolveTimeout: 5 * time.Second}
}

// Guard validates hosts and URLs before they are contacted.
type Guard struct {
	cfg      Config
	resolver Resolver
	logger   logging.Logger
}

func NewGuard(cfg Config, resolver Resolver, logger logging.Logger) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultConfig().ResolveTimeout
	}
	return &Guard{
		cfg:      cfg,
		resolver: resolver,
		logger:   logging.OrNop(logger).With(logging.F("component", "netguard")),
	}
}

// AllowsPrivate reports whether the guard was configured to let private hosts through.
func (g *Guard) AllowsPrivate() bool { return g.cfg.AllowPrivate }

// CheckHost rejects forbidden literals and hostnames where any resolved
// address (A or AAAA) is forbidden.
func (g *Guard) CheckHost(ctx context.Context, host string) error {
	if g.cfg.AllowPrivate {
		return nil
	}
	if IsForbiddenHost(host) {
		g.logger.Warn("blocked forbidden host", logging.F("host", host))
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}

	h := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if _, err := netip.ParseAddr(h); err == nil {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, g.cfg.ResolveTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(rctx, h)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrResolveFailed, host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: %s: no addresses", ErrResolveFailed, host)
	}
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok || IsForbiddenAddr(addr) {
			g.logger.Warn("blocked host resolving to forbidden address",
				logging.F("host", host), logging.F("addr", a.IP.String()))
			return fmt.Errorf("%w: %s resolves to %s", ErrForbiddenHost, host, a.IP)
		}
	}
	return nil
}

// CheckURL requires an http(s) URL and checks its host.
func (g *Guard) CheckURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: empty host", ErrForbiddenHost)
	}
	return g.CheckHost(ctx, u.Hostname())
}

// DialControl is a net.Dialer Control hook that re-checks the address actually
// dialed, so a hostname re-resolving to a private address is still refused.
func (g *Guard) DialControl(_, address string, _ syscall.RawConn) error {
	if g.cfg.AllowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: undialable address %s", ErrForbiddenHost, address)
	}
	if IsForbiddenAddr(addr) {
		return fmt.Errorf("%w: dial %s", ErrForbiddenHost, address)
	}
	return nil
}
