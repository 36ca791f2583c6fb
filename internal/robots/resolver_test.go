package robots_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/netguard"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/webclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverFor(t *testing.T, handler http.HandlerFunc) (*robots.Resolver, string) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	guard := netguard.NewGuard(netguard.Config{AllowPrivate: true}, nil, nil)
	client, err := webclient.NewNetHTTPClient(webclient.Config{}, guard, logging.NopLogger{}, ts.Client())
	require.NoError(t, err)
	return robots.NewResolver(client, logging.NopLogger{}, 0), ts.URL + "/"
}

func TestResolver_FetchesRobots(t *testing.T) {
	t.Parallel()

	r, root := resolverFor(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/robots.txt" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "User-agent: *\nDisallow: /admin\n")
	})

	rules := r.Resolve(context.Background(), root)
	assert.Equal(t, []string{"/admin"}, rules.Disallow)
}

func TestResolver_FailOpen(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, req *http.Request) { http.NotFound(w, req) },
		"html content type": func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /\n")
		},
		"server error": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r, root := resolverFor(t, h)
			assert.True(t, r.Resolve(context.Background(), root).Empty())
		})
	}
}

func TestResolver_BlockedHostYieldsEmptyRules(t *testing.T) {
	t.Parallel()

	guard := netguard.NewGuard(netguard.DefaultConfig(), nil, nil)
	client, err := webclient.NewNetHTTPClient(webclient.Config{}, guard, nil, nil)
	require.NoError(t, err)

	r := robots.NewResolver(client, nil, 0)
	assert.True(t, r.Resolve(context.Background(), "http://127.0.0.1:9/").Empty())
}
