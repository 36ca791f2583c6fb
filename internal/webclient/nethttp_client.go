package webclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/netguard"
)

// NetHTTPClient is a net/http fetcher that follows redirects by hand so that
// each hop passes the guard before it is contacted.
type NetHTTPClient struct {
	cfg    Config
	client *http.Client
	guard  *netguard.Guard
	logger logging.Logger
}

// NewNetHTTPClient builds a guarded client. If httpClient is nil a client is
// built whose dialer re-checks every dialed address.
func NewNetHTTPClient(cfg Config, guard *netguard.Guard, logger logging.Logger, httpClient *http.Client) (*NetHTTPClient, error) {
	if guard == nil {
		return nil, fmt.Errorf("%w: nil guard", ErrInvalidRequest)
	}
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	componentLogger := logging.OrNop(logger).With(logging.F("component", "webclient"))

	var c http.Client
	if httpClient != nil {
		c = *httpClient
	} else {
		dialer := &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   guard.DialControl,
		}
		c = http.Client{
			Transport: &http.Transport{
				Proxy:                 nil,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          50,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
		}
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if c.Timeout == 0 {
		c.Timeout = cfg.Timeout
	}

	componentLogger.Debug("created nethttp webclient",
		logging.F("timeout", c.Timeout.String()),
		logging.F("max_redirects", cfg.MaxRedirects))

	return &NetHTTPClient{
		cfg:    cfg,
		client: &c,
		guard:  guard,
		logger: componentLogger,
	}, nil
}

// Do executes req, validating the initial URL and every redirect target.
func (nhc *NetHTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	body := req.Body
	current := req.URL

	for hop := 0; ; hop++ {
		if err := nhc.guard.CheckURL(ctx, current); err != nil {
			return nil, err
		}

		resp, err := nhc.send(ctx, method, current, req.Headers, body)
		if err != nil {
			nhc.logger.Warn("http request failed",
				logging.F("method", method),
				logging.F("url", current),
				logging.Err(err))
			return nil, fmt.Errorf("http do: %w", err)
		}

		loc := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || loc == "" {
			return nhc.readResponse(req, current, resp)
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		if hop+1 > nhc.cfg.MaxRedirects {
			return nil, fmt.Errorf("%w: more than %d hops from %s", ErrTooManyRedirects, nhc.cfg.MaxRedirects, req.URL)
		}

		next, err := resolveLocation(current, loc)
		if err != nil {
			return nil, fmt.Errorf("redirect location: %w", err)
		}
		nhc.logger.Debug("following redirect",
			logging.F("from", current),
			logging.F("to", next),
			logging.F("status", resp.StatusCode))

		if resp.StatusCode == http.StatusSeeOther ||
			((resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound) && method != http.MethodHead) {
			method = http.MethodGet
			body = nil
		}
		current = next
	}
}

func (nhc *NetHTTPClient) send(ctx context.Context, method, target string, headers http.Header, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", nhc.cfg.UserAgent)
	}
	return nhc.client.Do(httpReq)
}

func (nhc *NetHTTPClient) readResponse(req *Request, finalURL string, resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, nhc.cfg.MaxBodyBytes+1))
	if err != nil {
		nhc.logger.Warn("failed to read response body",
			logging.F("url", finalURL),
			logging.Err(err))
		return nil, fmt.Errorf("read body: %w", err)
	}
	truncated := int64(len(body)) > nhc.cfg.MaxBodyBytes
	if truncated {
		body = body[:nhc.cfg.MaxBodyBytes]
		nhc.logger.Warn("response body truncated",
			logging.F("url", finalURL),
			logging.F("limit", nhc.cfg.MaxBodyBytes))
	}

	return &Response{
		Request:    req,
		Body:       body,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now(),
		FinalURL:   finalURL,
		Truncated:  truncated,
	}, nil
}

// Get is a convenience method for simple GET requests
func (nhc *NetHTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	return nhc.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

func (nhc *NetHTTPClient) Close() error {
	nhc.client.CloseIdleConnections()
	return nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(base, loc string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(l).String(), nil
}
