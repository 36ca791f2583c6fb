// Package robots reads the disallow rules that apply to every crawler ("*")
// from a site's robots.txt. The policy is advisory, so every failure yields
// an empty rule set and crawling continues.
package robots

import (
	"bufio"
	"net/url"
	"strings"
)

// Rules is an ordered list of disallowed path prefixes.
type Rules struct {
	Disallow []string
}

// Empty reports whether no prefix is disallowed.
func (r Rules) Empty() bool { return len(r.Disallow) == 0 }

// Allowed reports whether no disallow prefix is a literal prefix of the
// URL's path plus query. Unparseable URLs are allowed.
func (r Rules) Allowed(rawURL string) bool {
	if r.Empty() {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	for _, prefix := range r.Disallow {
		if strings.HasPrefix(p, prefix) {
			return false
		}
	}
	return true
}

type group struct {
	agents   []string
	disallow []string
}

func (g group) wildcard() bool {
	for _, a := range g.agents {
		if a == "*" {
			return true
		}
	}
	return false
}

// Parse extracts the disallow prefixes of every "*" group. Consecutive
// User-agent lines share a group; a User-agent line after any directive
// starts a new one. Wildcards truncate a rule to its literal prefix.
func Parse(body string) Rules {
	var (
		groups       []group
		current      group
		hasDirective bool
	)

	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if len(current.agents) > 0 && hasDirective {
				groups = append(groups, current)
				current = group{}
				hasDirective = false
			}
			current.agents = append(current.agents, strings.ToLower(value))
		case "disallow":
			hasDirective = true
			current.disallow = append(current.disallow, value)
		case "allow", "crawl-delay", "sitemap":
			hasDirective = true
		}
	}
	if len(current.agents) > 0 {
		groups = append(groups, current)
	}

	var rules Rules
	for _, g := range groups {
		if !g.wildcard() {
			continue
		}
		for _, rule := range g.disallow {
			if rule == "" {
				// An empty Disallow allows everything.
				continue
			}
			prefix, _, _ := strings.Cut(rule, "*")
			switch {
			case prefix == "":
				prefix = "/"
			case !strings.HasPrefix(prefix, "/"):
				prefix = "/" + prefix
			}
			rules.Disallow = append(rules.Disallow, prefix)
		}
	}
	return rules
}
