package utils

import (
	"errors"
	"net"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalizeOptions controls optional canonicalization policies.
type CanonicalizeOptions struct {
	DropTrackingParams     bool     // remove utm_* and known click-id params
	StripTrailingSlash     bool     // treat /a and /a/ the same by removing trailing slash (except for root "/")
	DefaultScheme          string   // if empty, require scheme in input; otherwise assume this scheme for schemeless URLs
	TrackingParamAllowlist []string // tracking params listed here survive DropTrackingParams
}

// ScanOptions is the canonicalization policy used for every URL the scanner stores or compares.
var ScanOptions = CanonicalizeOptions{
	DropTrackingParams: true,
	StripTrailingSlash: true,
}

// Params stripped when DropTrackingParams is set, in addition to any utm_* key.
var defaultTrackingParams = map[string]struct{}{
	"gclid": {}, "fbclid": {}, "yclid": {}, "mc_cid": {}, "mc_eid": {},
}

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z\d+.-]*:`)

// EnsureScheme prepends https:// to input that carries no scheme.
func EnsureScheme(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if schemePattern.MatchString(trimmed) && !looksLikeHostPort(trimmed) {
		return trimmed
	}
	return "https://" + trimmed
}

// "example.com:8080/x" matches the scheme pattern but is a host:port.
func looksLikeHostPort(s string) bool {
	head, rest, ok := strings.Cut(s, ":")
	if !ok || (!strings.Contains(head, ".") && head != "localhost") {
		return false
	}
	port, _, _ := strings.Cut(rest, "/")
	if port == "" {
		return false
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Normalize canonicalizes raw with ScanOptions.
// Normalize(Normalize(u)) == Normalize(u) for every u it accepts.
func Normalize(raw string) (string, error) {
	return Canonicalize(raw, ScanOptions)
}

// Canonicalize returns a deterministic canonical URL string or an error.
// It uses net/url plus path.Clean and sorts query params for determinism.
func Canonicalize(raw string, opts CanonicalizeOptions) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &url.Error{Op: "parse", URL: raw, Err: ErrEmptyURL}
	}

	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", &url.Error{Op: "parse", URL: raw, Err: ErrMissingHost}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u)
	u.User = nil

	cleanPath := u.Path
	if cleanPath == "" {
		cleanPath = "/"
	}
	cleanPath = path.Clean(cleanPath)
	if cleanPath == "." {
		cleanPath = "/"
	}
	if !opts.StripTrailingSlash && strings.HasSuffix(u.Path, "/") && cleanPath != "/" {
		cleanPath += "/"
	}
	u.Path = cleanPath
	u.RawPath = ""

	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	if opts.DropTrackingParams {
		for k := range q {
			if isAllowedByAllowlist(k, opts.TrackingParamAllowlist) {
				continue
			}
			if IsTrackingParam(k) {
				q.Del(k)
			}
		}
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := url.Values{}
	for _, k := range keys {
		values := q[k]
		sort.Strings(values)
		for _, v := range values {
			ordered.Add(k, v)
		}
	}
	u.RawQuery = ordered.Encode()
	u.ForceQuery = false

	return u.String(), nil
}

// IsTrackingParam reports whether a query key is a utm_* or click-id parameter.
func IsTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	_, ok := defaultTrackingParams[k]
	return ok
}

// canonicalHost lowercases the hostname, converts IDN to punycode and drops default ports.
func canonicalHost(u *url.URL) string {
	host := CanonicalHostname(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// CanonicalHostname lowercases host and converts IDN labels to punycode.
func CanonicalHostname(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		return puny
	}
	return host
}

func isAllowedByAllowlist(key string, allowlist []string) bool {
	for _, a := range allowlist {
		if key == a {
			return true
		}
	}
	return false
}

// Errors
var (
	ErrEmptyURL    = errors.New("empty url")
	ErrMissingHost = errors.New("missing host")
)
