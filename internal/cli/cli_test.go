package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/analyzer"
	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/enumerator"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/netguard"
	"github.com/raysh454/a11yscan/internal/report"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/testutil"
	"github.com/raysh454/a11yscan/internal/tracker"
)

func imageAltViolation() analyzer.Result {
	return analyzer.Result{
		Violations: []analyzer.Finding{{
			ID:      "image-alt",
			Impact:  "critical",
			Help:    "Images must have alternative text",
			HelpURL: "https://dequeuniversity.com/rules/axe/4.10/image-alt",
			Tags:    []string{"wcag2a", "wcag111"},
			Nodes:   []analyzer.FindingNode{{HTML: `<img src="a.png">`, Target: json.RawMessage(`["img"]`)}},
		}},
	}
}

// fakeApps builds applications over scripted pages instead of Chrome.
func fakeApps(t *testing.T) (appFactory, *[]*app.Config) {
	t.Helper()
	var seen []*app.Config
	return func(cfg *app.Config, _ logging.Logger) (*app.Application, error) {
		seen = append(seen, cfg)
		logger := &testutil.DummyLogger{}
		engine, err := analyzer.NewEngine("window.axe = window.axe || {};")
		if err != nil {
			return nil, err
		}
		web := &testutil.DummyWebClient{Pages: map[string]string{}}
		comps := &app.Components{
			Tracker: tracker.NewInMemoryTracker(logger),
			Policy:  robots.NewResolver(web, logger, time.Second),
			Discoverer: enumerator.NewDiscovererWith(&testutil.DummyEnumerator{},
				&testutil.DummyEnumerator{URLs: []string{"https://site.test/", "https://site.test/gone"}}, logger),
			Launcher: &testutil.DummyLauncher{Routes: map[string]testutil.DummyRoute{
				"https://site.test/":     {Result: imageAltViolation()},
				"https://site.test/gone": {Status: 404},
			}},
			Runner: analyzer.NewRunner(engine, logger),
			Guard: netguard.NewGuard(cfg.Guard, testutil.StaticResolver{
				"site.test": {"93.184.216.34"},
			}, logger),
			Clock: testutil.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		}
		cfg.PageTimeout = 5 * time.Second
		return app.NewApplicationWith(cfg, comps, logger), nil
	}, &seen
}

func run(t *testing.T, args ...string) (string, []*app.Config, error) {
	t.Helper()
	factory, seen := fakeApps(t)
	out := &bytes.Buffer{}
	cmd := newRootCommand(&options{newApp: factory, out: out})
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), *seen, err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "scan", "demo"})

	for _, flag := range []string{"config", "log-level", "memory"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestScanCommand_RequiresOneURL(t *testing.T) {
	_, seen, err := run(t, "scan")
	require.Error(t, err)
	assert.Empty(t, seen)

	_, _, err = run(t, "scan", "a", "b")
	require.Error(t, err)
}

func TestScanCommand_PrintsReport(t *testing.T) {
	out, seen, err := run(t, "scan", "--memory", "--max-pages", "5", "site.test")
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.True(t, seen[0].UseMemoryStore)

	assert.Contains(t, out, "queued for site.test")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "Violations: 1 (critical 1, serious 0, moderate 0, minor 0, unknown 0)")
	assert.Contains(t, out, "image-alt")
	assert.Contains(t, out, "WCAG 2.0 A")
	assert.Contains(t, out, "https://site.test/gone")
	assert.Contains(t, out, "http_error")
}

func TestScanCommand_JSON(t *testing.T) {
	out, _, err := run(t, "scan", "--json", "https://site.test/")
	require.NoError(t, err)

	var rep report.ScanReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	assert.Equal(t, model.ScanCompleted, rep.Status)
	assert.Equal(t, 2, rep.Summary.TotalPages)
	assert.Equal(t, 1, rep.Summary.SuccessPages)
	require.NotNil(t, rep.Score)
}

func TestScanCommand_RejectsUnsafeTarget(t *testing.T) {
	_, _, err := run(t, "scan", "http://127.0.0.1:8080/")
	require.ErrorIs(t, err, app.ErrInvalidInput)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a11yscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\nmax_pages_default: 4\nmemory_store: false\n"), 0o600))

	opts := &options{configFile: path}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 4, cfg.MaxPagesDefault)
	assert.False(t, cfg.UseMemoryStore)

	opts.logLevel = "debug"
	opts.memory = true
	cfg, err = opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.UseMemoryStore)

	_, err = (&options{configFile: filepath.Join(t.TempDir(), "missing.yaml")}).loadConfig()
	assert.Error(t, err)
}

func TestPrintReport_FailedPageDetail(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &report.ScanReport{
		PublicID: "scan_AAAAAAAAAA",
		Status:   model.ScanCompleted,
		Summary:  report.Summary{TotalPages: 1, FailedPages: 1, SeverityCounts: map[model.Severity]int{}},
		Pages: []model.PageResult{{Page: model.Page{
			URL:          "https://site.test/",
			Status:       model.PageFailed,
			ErrorCode:    "timeout",
			ErrorMessage: "page load timed out",
		}}},
	})
	assert.Contains(t, buf.String(), "timeout page load timed out")
	assert.NotContains(t, buf.String(), "Score:")
}
