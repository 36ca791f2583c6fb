package analyzer_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/analyzer"
	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/logging"
)

// lockedAxePage defines its own window.axe that can be neither deleted nor
// overwritten.
const lockedAxePage = `<html><head><script>
Object.defineProperty(window, "axe", {
  value: { run: async () => ({ violations: [{ id: "page-owned", impact: "minor", nodes: [] }], incomplete: [] }) },
  configurable: false, writable: false
});
</script></head><body><p>hi</p></body></html>`

// fakeBundle registers like the real bundle: module.exports when a module
// object exists, and window.axe otherwise.
const fakeBundle = `(function () {
  var axe = { run: async function () {
    return { violations: [{ id: "injected", impact: "serious", nodes: [] }], incomplete: [] };
  } };
  if (typeof module === "object" && module.exports) { module.exports = axe; }
  window.axe = axe;
})();`

func TestEngine_IgnoresLockedPageAxe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, lockedAxePage)
	}))
	defer ts.Close()

	l := browser.NewChromeLauncher(browser.DefaultConfig(), logging.NopLogger{})
	t.Cleanup(func() { _ = l.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := l.Start(ctx); err != nil {
		t.Skipf("Skipping chromedp test (environment does not support chromedp): %v", err)
	}
	page, err := l.NewSession(ctx, nil)
	if err != nil {
		t.Skipf("Skipping chromedp test (cannot open session): %v", err)
	}
	t.Cleanup(func() { _ = page.Close() })

	_, err = page.Navigate(ctx, ts.URL)
	require.NoError(t, err)

	engine, err := analyzer.NewEngine(fakeBundle)
	require.NoError(t, err)

	for _, s := range []analyzer.Strategy{engine.ScriptTag(), engine.IsolatedClosure()} {
		res, err := s.Attempt(ctx, page)
		require.NoError(t, err, s.Name)
		require.Len(t, res.Violations, 1, s.Name)
		assert.Equal(t, "injected", res.Violations[0].ID, s.Name)
	}
}
