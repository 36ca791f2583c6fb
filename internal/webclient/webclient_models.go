package webclient

import (
	"mime"
	"net/http"
	"strings"
	"time"
)

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time

	// FinalURL is the URL of the last hop after redirects.
	FinalURL string
	// Truncated is set when the body hit MaxBodyBytes.
	Truncated bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// MediaType returns the lowercased media type of the Content-Type header, or "".
func (r *Response) MediaType() string {
	ct := r.Headers.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt, _, _ = strings.Cut(ct, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
