package utils

import (
	"net/url"
	"strings"
)

var nonHTMLExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico", ".bmp",
	".mp4", ".mov", ".avi", ".webm", ".mp3", ".wav",
	".zip", ".tar", ".gz", ".rar", ".7z",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".csv",
	".css", ".js", ".json", ".xml", ".txt",
}

// IsPseudoLink reports hrefs that never point at a document.
func IsPseudoLink(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "javascript:")
}

// HasNonHTMLExtension reports whether the URL path ends in a known non-document extension.
func HasNonHTMLExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range nonHTMLExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// SameHost compares the canonical hostnames of two absolute URLs. Ports are ignored.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return CanonicalHostname(ua.Hostname()) == CanonicalHostname(ub.Hostname())
}

// NormalizeAndFilter resolves href against rootURL and returns its normalized form
// when it is a same-host http(s) link that likely serves HTML.
func NormalizeAndFilter(rootURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || IsPseudoLink(href) {
		return "", false
	}

	base, err := url.Parse(rootURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""

	scheme := strings.ToLower(resolved.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	normalized, err := Normalize(resolved.String())
	if err != nil {
		return "", false
	}
	if !SameHost(rootURL, normalized) {
		return "", false
	}
	if HasNonHTMLExtension(normalized) {
		return "", false
	}
	return normalized, true
}
