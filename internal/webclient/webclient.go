package webclient

import (
	"context"
	"errors"
)

var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrInvalidRequest   = errors.New("invalid request")
)

// WebClient fetches documents. Implementations must validate every hop
// against the network guard.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}
