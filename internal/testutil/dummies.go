// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of recorded warnings.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// URLs present in Pages are served as text/html with status 200; everything
// else is a 404. Set FailURLs[url] = true to force an error for a specific URL.
type DummyWebClient struct {
	Pages    map[string]string
	FailURLs map[string]bool

	mu       sync.Mutex
	Requests []string
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req.URL)
	d.mu.Unlock()

	if d.FailURLs[req.URL] {
		return nil, errors.New("dummy fetch fail for " + req.URL)
	}

	h := http.Header{}
	body, ok := d.Pages[req.URL]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		body = "not found"
		h.Set("Content-Type", "text/plain")
	} else if strings.HasSuffix(req.URL, ".xml") {
		h.Set("Content-Type", "application/xml")
	} else if strings.HasSuffix(req.URL, ".txt") {
		h.Set("Content-Type", "text/plain")
	} else {
		h.Set("Content-Type", "text/html; charset=utf-8")
	}

	return &webclient.Response{
		Request:    req,
		Headers:    h,
		Body:       []byte(body),
		StatusCode: status,
		FetchedAt:  time.Now(),
		FinalURL:   req.URL,
	}, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// ─── Enumerator ────────────────────────────────────────────────────────

// DummyEnumerator implements enumerator.Enumerator.
type DummyEnumerator struct {
	URLs []string
	Err  error
}

func (d *DummyEnumerator) Enumerate(_ context.Context, _ string, limit int, rules robots.Rules) ([]string, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	var out []string
	for _, u := range d.URLs {
		if !rules.Allowed(u) {
			continue
		}
		out = append(out, u)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ─── Resolver ──────────────────────────────────────────────────────────

// StaticResolver implements netguard.Resolver from a host → IPs table.
type StaticResolver map[string][]string

func (s StaticResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := s[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out, nil
}

// ─── Clock ─────────────────────────────────────────────────────────────

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock { return &FakeClock{now: t} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ─── Browser ───────────────────────────────────────────────────────────

// DummyRoute scripts what a DummyPage does for one URL.
type DummyRoute struct {
	Status   int
	MimeType string
	// FinalURL simulates a redirect; empty means no redirect.
	FinalURL string
	NavErr   error
	// Result is JSON-encoded into the engine invocation output.
	Result    any
	EngineErr error
	HTML      string
}

// DummyLauncher implements browser.Launcher; every session is a DummyPage
// sharing Routes.
type DummyLauncher struct {
	Routes map[string]DummyRoute
	// EvaluateHook, when set, replaces the default Evaluate behaviour on every page.
	EvaluateHook func(page *DummyPage, script string, out any) error
	Err          error

	mu       sync.Mutex
	Sessions []*DummyPage
	Closed   bool
}

func (l *DummyLauncher) NewSession(ctx context.Context, filter browser.RequestFilter) (browser.Page, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	p := &DummyPage{Routes: l.Routes, Filter: filter, EvaluateHook: l.EvaluateHook}
	l.mu.Lock()
	l.Sessions = append(l.Sessions, p)
	l.mu.Unlock()
	return p, nil
}

func (l *DummyLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed = true
	return nil
}

// SessionCount returns how many sessions were opened.
func (l *DummyLauncher) SessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Sessions)
}

// AllClosed reports whether every session page was closed.
func (l *DummyLauncher) AllClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.Sessions {
		if !p.IsClosed() {
			return false
		}
	}
	return true
}

// DummyPage implements browser.Page.
type DummyPage struct {
	Routes       map[string]DummyRoute
	Filter       browser.RequestFilter
	EvaluateHook func(page *DummyPage, script string, out any) error
	// IdleErr is returned by WaitNetworkIdle.
	IdleErr error

	mu          sync.Mutex
	current     string
	content     string
	closed      bool
	Navigations []string
	Scripts     []string
	ScriptTags  int
	TagSources  []string
	Sleeps      int
	Blank       []*DummyPage
}

// Current returns the URL the page is on.
func (p *DummyPage) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *DummyPage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *DummyPage) route() DummyRoute {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Routes[p.current]
}

func (p *DummyPage) Navigate(ctx context.Context, url string) (*browser.NavResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.Navigations = append(p.Navigations, url)
	p.mu.Unlock()

	if p.Filter != nil {
		if err := p.Filter(ctx, url); err != nil {
			return nil, errors.New("net::ERR_BLOCKED_BY_CLIENT: " + err.Error())
		}
	}
	r, ok := p.Routes[url]
	if !ok {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED at " + url)
	}
	if r.NavErr != nil {
		return nil, r.NavErr
	}

	final := url
	if r.FinalURL != "" {
		final = r.FinalURL
		if p.Filter != nil {
			if err := p.Filter(ctx, final); err != nil {
				return nil, errors.New("net::ERR_BLOCKED_BY_CLIENT: " + err.Error())
			}
		}
	}
	p.mu.Lock()
	p.current = url
	p.content = r.HTML
	p.mu.Unlock()

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	mime := r.MimeType
	if mime == "" {
		mime = "text/html"
	}
	return &browser.NavResponse{Status: status, MimeType: mime, URL: final}, nil
}

func (p *DummyPage) WaitNetworkIdle(ctx context.Context, _ time.Duration) error {
	if p.IdleErr != nil {
		return p.IdleErr
	}
	return ctx.Err()
}

func (p *DummyPage) Sleep(_ context.Context, _ time.Duration) {
	p.mu.Lock()
	p.Sleeps++
	p.mu.Unlock()
}

// Evaluate records the script. Scripts with a nil out succeed; a non-nil out
// receives the route's Result, or the route's EngineErr is returned.
func (p *DummyPage) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Scripts = append(p.Scripts, script)
	p.mu.Unlock()

	if p.EvaluateHook != nil {
		return p.EvaluateHook(p, script, out)
	}
	if out == nil {
		return nil
	}
	r := p.route()
	if r.EngineErr != nil {
		return r.EngineErr
	}
	b, err := json.Marshal(r.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (p *DummyPage) AddScriptTag(ctx context.Context, source string) error {
	p.mu.Lock()
	p.ScriptTags++
	p.TagSources = append(p.TagSources, source)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *DummyPage) Content(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.content == "" {
		return "<html><head></head><body></body></html>", nil
	}
	return p.content, nil
}

func (p *DummyPage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.Routes[p.current]; ok && r.FinalURL != "" {
		return r.FinalURL, nil
	}
	return p.current, nil
}

// NewBlankPage returns a page positioned on about:blank; its behaviour
// comes from Routes["about:blank"].
func (p *DummyPage) NewBlankPage(context.Context) (browser.Page, error) {
	np := &DummyPage{Routes: p.Routes, Filter: p.Filter, EvaluateHook: p.EvaluateHook, current: "about:blank"}
	p.mu.Lock()
	p.Blank = append(p.Blank, np)
	p.mu.Unlock()
	return np, nil
}

func (p *DummyPage) SetContent(_ context.Context, html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = html
	return nil
}

func (p *DummyPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
