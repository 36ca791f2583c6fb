package enumerator_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/raysh454/a11yscan/internal/enumerator"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/netguard"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/webclient"
)

func htmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Add("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}
}

// Depth 0: /, depth 1: /example /blog, depth 2: /example/a /example/b, depth 3: /example/a/1
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", htmlHandler(`
	<a href=/example>example</a>
	<a href=/blog>blog</a>
	<a href="mailto:owner@example.com">mail</a>
	<a href="https://elsewhere.example/">external</a>
	`))
	mux.HandleFunc("/example", htmlHandler(`
	<a href=/example/a>example a</a>
	<a href=/example/b>example b</a>
	<a href=/example>example</a>
	<a href=/files/report.pdf>report</a>
	`))
	mux.HandleFunc("/example/a", htmlHandler(`
	<a href=/example/a/1>example a 1</a>
	<a href=/blog#comments>blog</a>
	`))
	mux.HandleFunc("/example/b", htmlHandler(`<a href=../example>test</a>`))
	mux.HandleFunc("/example/a/1", htmlHandler(`<a href=/too/deep>deep</a>`))
	mux.HandleFunc("/blog", htmlHandler("blog"))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestWebClient(t *testing.T, ts *httptest.Server) webclient.WebClient {
	t.Helper()
	guard := netguard.NewGuard(netguard.Config{AllowPrivate: true}, nil, nil)
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, guard, logging.NopLogger{}, ts.Client())
	if err != nil {
		t.Fatalf("Failed to create webclient: %v", err)
	}
	t.Cleanup(func() { _ = wc.Close() })
	return wc
}

func runSpider(t *testing.T, ts *httptest.Server, maxDepth, limit int, rules robots.Rules) []string {
	t.Helper()
	spider := enumerator.NewSpider(enumerator.Config{MaxDepth: maxDepth}, newTestWebClient(t, ts), nil)
	got, err := spider.Enumerate(context.Background(), ts.URL, limit, rules)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	return got
}

func TestSpider_Depth(t *testing.T) {
	t.Parallel()
	ts := newSiteServer(t)
	addr := ts.URL

	t.Run("depth 1", func(t *testing.T) {
		want := []string{
			addr + "/",
			addr + "/example",
			addr + "/blog",
			addr + "/example/a",
			addr + "/example/b",
		}
		if got := runSpider(t, ts, 1, 100, robots.Rules{}); !reflect.DeepEqual(got, want) {
			t.Errorf("got: %v, want: %v", got, want)
		}
	})

	t.Run("depth 2", func(t *testing.T) {
		want := []string{
			addr + "/",
			addr + "/example",
			addr + "/blog",
			addr + "/example/a",
			addr + "/example/b",
			addr + "/example/a/1",
		}
		if got := runSpider(t, ts, 2, 100, robots.Rules{}); !reflect.DeepEqual(got, want) {
			t.Errorf("got: %v, want: %v", got, want)
		}
	})
}

func TestSpider_StopsAtLimit(t *testing.T) {
	t.Parallel()
	ts := newSiteServer(t)

	got := runSpider(t, ts, 2, 3, robots.Rules{})
	want := []string{ts.URL + "/", ts.URL + "/example", ts.URL + "/blog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got: %v, want: %v", got, want)
	}
}

func TestSpider_HonorsRobots(t *testing.T) {
	t.Parallel()
	ts := newSiteServer(t)

	got := runSpider(t, ts, 2, 100, robots.Rules{Disallow: []string{"/example"}})
	want := []string{ts.URL + "/", ts.URL + "/blog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got: %v, want: %v", got, want)
	}
}

func TestSpider_DisallowedRootYieldsNothing(t *testing.T) {
	t.Parallel()
	ts := newSiteServer(t)

	if got := runSpider(t, ts, 2, 100, robots.Rules{Disallow: []string{"/"}}); len(got) != 0 {
		t.Errorf("expected no candidates, got %v", got)
	}
}

func TestSpider_UnreachablePagesAreSkipped(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", htmlHandler(`<a href="/broken">x</a><a href="/ok">y</a>`))
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	mux.HandleFunc("/ok", htmlHandler(`<a href="/leaf">z</a>`))
	mux.HandleFunc("/leaf", htmlHandler("leaf"))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	got := runSpider(t, ts, 2, 100, robots.Rules{})
	want := []string{ts.URL + "/", ts.URL + "/broken", ts.URL + "/ok", ts.URL + "/leaf"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got: %v, want: %v", got, want)
	}
}
