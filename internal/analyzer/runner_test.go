package analyzer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/analyzer"
	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/testutil"
)

// ─── Helpers ───────────────────────────────────────────────────────────

type recorder struct {
	calls []string
}

func (r *recorder) strategy(name string, fails int) analyzer.Strategy {
	n := 0
	return analyzer.Strategy{
		Name: name,
		Attempt: func(ctx context.Context, page browser.Page) (*analyzer.Result, error) {
			r.calls = append(r.calls, name)
			n++
			if fails < 0 || n <= fails {
				return nil, errors.New(name + " failed")
			}
			return &analyzer.Result{Strategy: name}, nil
		},
	}
}

func sampleResult() map[string]any {
	return map[string]any{
		"violations": []any{map[string]any{
			"id":     "image-alt",
			"impact": "critical",
			"tags":   []string{"cat.text-alternatives", "wcag2a"},
			"nodes":  []any{map[string]any{"html": "<img src=a.png>", "target": []string{"img"}}},
		}},
		"incomplete": []any{},
	}
}

// ─── Runner chain ──────────────────────────────────────────────────────

func TestRunner_FirstStrategyWins(t *testing.T) {
	rec := &recorder{}
	fb := rec.strategy("snapshot", 0)
	r := analyzer.NewRunnerWith([]analyzer.Strategy{rec.strategy("a", 0), rec.strategy("b", 0)}, &fb, nil)

	res, err := r.Run(context.Background(), &testutil.DummyPage{})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Strategy)
	assert.Equal(t, []string{"a"}, rec.calls)
}

func TestRunner_FallsThroughInOrder(t *testing.T) {
	rec := &recorder{}
	r := analyzer.NewRunnerWith([]analyzer.Strategy{rec.strategy("a", -1), rec.strategy("b", 0)}, nil, nil)

	res, err := r.Run(context.Background(), &testutil.DummyPage{})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Strategy)
	assert.Equal(t, []string{"a", "b"}, rec.calls)
}

func TestRunner_RetriesChainOnceWithBackoff(t *testing.T) {
	rec := &recorder{}
	page := &testutil.DummyPage{}
	r := analyzer.NewRunnerWith([]analyzer.Strategy{rec.strategy("a", 1), rec.strategy("b", -1)}, nil, nil)

	res, err := r.Run(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Strategy)
	assert.Equal(t, []string{"a", "b", "a"}, rec.calls)
	assert.Equal(t, 1, page.Sleeps)
}

func TestRunner_EscalatesToSnapshotAfterRetries(t *testing.T) {
	rec := &recorder{}
	fb := rec.strategy("snapshot", 0)
	r := analyzer.NewRunnerWith([]analyzer.Strategy{rec.strategy("a", -1), rec.strategy("b", -1)}, &fb, nil)

	res, err := r.Run(context.Background(), &testutil.DummyPage{})
	require.NoError(t, err)
	assert.Equal(t, "snapshot", res.Strategy)
	assert.Equal(t, []string{"a", "b", "a", "b", "snapshot"}, rec.calls)
}

func TestRunner_AllFailWrapsEngineUnavailable(t *testing.T) {
	rec := &recorder{}
	fb := rec.strategy("snapshot", -1)
	logger := &testutil.DummyLogger{}
	r := analyzer.NewRunnerWith([]analyzer.Strategy{rec.strategy("a", -1)}, &fb, logger)

	_, err := r.Run(context.Background(), &testutil.DummyPage{})
	require.Error(t, err)
	assert.ErrorIs(t, err, analyzer.ErrEngineUnavailable)
	assert.Contains(t, err.Error(), "snapshot failed")
	assert.Equal(t, 1, logger.WarnCount())
}

func TestRunner_CancelledContext(t *testing.T) {
	rec := &recorder{}
	r := analyzer.NewRunnerWith([]analyzer.Strategy{rec.strategy("a", 0)}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, &testutil.DummyPage{})
	assert.ErrorIs(t, err, analyzer.ErrEngineUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.calls)
}

// ─── Engine strategies ─────────────────────────────────────────────────

func TestEngine_EmptySource(t *testing.T) {
	_, err := analyzer.NewEngine("  ")
	assert.ErrorIs(t, err, analyzer.ErrEngineUnavailable)
}

func TestEngine_ScriptTagRunsProtocol(t *testing.T) {
	engine, err := analyzer.NewEngine("window.axe = {};")
	require.NoError(t, err)

	page := &testutil.DummyPage{Routes: map[string]testutil.DummyRoute{
		"https://example.com/": {Result: sampleResult()},
	}}
	_, err = page.Navigate(context.Background(), "https://example.com/")
	require.NoError(t, err)

	res, err := analyzer.NewRunner(engine, nil).Run(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "script-tag", res.Strategy)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "image-alt", res.Violations[0].ID)
	assert.Equal(t, 1, page.ScriptTags)
	// reset then invoke
	require.Len(t, page.Scripts, 2)
	assert.Contains(t, page.Scripts[0], "delete window.__a11yscan_axe")
	assert.Contains(t, page.Scripts[1], "window.__a11yscan_axe")
	assert.NotContains(t, page.Scripts[1], "window.axe")
	assert.Contains(t, page.Scripts[1], "engine.run(document")

	require.Len(t, page.TagSources, 1)
	assert.Contains(t, page.TagSources[0], "window.axe = {};")
	assert.Contains(t, page.TagSources[0], `"__a11yscan_axe"`)
}

func TestEngine_IsolatedClosureWrapsSource(t *testing.T) {
	engine, err := analyzer.NewEngine("var axe = 1;")
	require.NoError(t, err)

	var injected string
	page := &testutil.DummyPage{EvaluateHook: func(_ *testutil.DummyPage, script string, out any) error {
		if strings.Contains(script, "var axe = 1;") {
			injected = script
		}
		if out != nil {
			*(out.(*analyzer.Result)) = analyzer.Result{}
		}
		return nil
	}}

	res, err := engine.IsolatedClosure().Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "isolated-closure", res.Strategy)
	assert.Contains(t, injected, "define = undefined")
	assert.Contains(t, injected, "({ exports: {} })")
	assert.Contains(t, injected, "window.axe !== __a11yscanPrior")
	assert.Zero(t, page.ScriptTags)
}

func TestEngine_DOMSnapshotUsesBlankPage(t *testing.T) {
	engine, err := analyzer.NewEngine("window.axe = {};")
	require.NoError(t, err)

	routes := map[string]testutil.DummyRoute{
		"https://example.com/": {
			EngineErr: errors.New("blocked by CSP"),
			HTML:      `<html><head><meta http-equiv="Content-Security-Policy" content="script-src 'none'"></head><body><script>x()</script><img src="a.png"></body></html>`,
		},
		"about:blank": {Result: sampleResult()},
	}
	page := &testutil.DummyPage{Routes: routes}
	_, err = page.Navigate(context.Background(), "https://example.com/")
	require.NoError(t, err)

	res, err := analyzer.NewRunner(engine, nil).Run(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "dom-snapshot", res.Strategy)

	require.Len(t, page.Blank, 1)
	blank := page.Blank[0]
	assert.True(t, blank.IsClosed())
	html, _ := blank.Content(context.Background())
	assert.NotContains(t, html, "<script")
	assert.NotContains(t, html, "Content-Security-Policy")
	assert.Contains(t, html, `<base href="https://example.com/"/>`)
	// two in-page rounds of two strategies before escalating
	assert.Equal(t, 1, page.Sleeps)
}
