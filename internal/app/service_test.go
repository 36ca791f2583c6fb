package app

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/testutil"
	"github.com/raysh454/a11yscan/internal/tracker"
)

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *recordingQueue) Enqueue(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type countingSweeper struct{ calls int }

func (s *countingSweeper) MaybeSweep(context.Context) { s.calls++ }

func newTestService(t *testing.T) (*Service, *harness, *recordingQueue, *countingSweeper) {
	t.Helper()
	h := newHarness(t, nil)
	q := &recordingQueue{}
	sw := &countingSweeper{}
	return NewService(h.cfg, h.comps, q, sw, h.logger), h, q, sw
}

func TestNewPublicID(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := NewPublicID()
		require.Regexp(t, `^scan_[A-Za-z0-9_-]{10}$`, id)
		require.True(t, ValidPublicID(id))
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.False(t, ValidPublicID("scan_abc!defghi"))
	assert.False(t, ValidPublicID("job_abcdefghij"))
	assert.False(t, ValidPublicID("scan_abcdefghijk"))
}

func TestSubmit_CreatesQueuedScan(t *testing.T) {
	t.Parallel()

	svc, h, q, _ := newTestService(t)
	res, err := svc.Submit(context.Background(), "  site.test/?utm_source=ad  ", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ScanQueued, res.Status)
	assert.Equal(t, []string{res.PublicID}, q.ids)

	scan, err := h.tracker.GetScan(context.Background(), res.PublicID)
	require.NoError(t, err)
	assert.Equal(t, "https://site.test/?utm_source=ad", scan.InputURL)
	assert.Equal(t, siteRoot, scan.NormalizedRootURL)
	assert.Equal(t, 10, scan.MaxPages)
	assert.Equal(t, model.ScanQueued, scan.Status)
}

func TestSubmit_ClampsPageBudget(t *testing.T) {
	t.Parallel()

	svc, h, _, _ := newTestService(t)
	for _, tt := range []struct {
		requested *int
		want      int
	}{
		{nil, 10},
		{model.Ptr(0), 1},
		{model.Ptr(-4), 1},
		{model.Ptr(7), 7},
		{model.Ptr(500), 20},
	} {
		res, err := svc.Submit(context.Background(), siteRoot, tt.requested)
		require.NoError(t, err)
		scan, err := h.tracker.GetScan(context.Background(), res.PublicID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, scan.MaxPages)
	}
}

func TestSubmit_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	svc, _, q, _ := newTestService(t)
	for name, raw := range map[string]string{
		"empty":          "   ",
		"too long":       "https://site.test/" + strings.Repeat("a", 2048),
		"ftp scheme":     "ftp://site.test/file",
		"javascript":     "javascript:alert(1)",
		"localhost":      "http://localhost:3000/",
		"loopback ip":    "http://127.0.0.1/",
		"private ip":     "https://10.0.0.1/",
		"ipv6 loopback":  "http://[::1]/",
		"private dns":    "https://intranet.test/",
		"unresolvable":   "https://nowhere.test/",
		"no host at all": "https://",
	} {
		_, err := svc.Submit(context.Background(), raw, nil)
		assert.ErrorIs(t, err, ErrInvalidInput, name)
	}
	assert.Empty(t, q.ids)
}

func TestSubmit_QueueFullFailsScan(t *testing.T) {
	t.Parallel()

	svc, h, q, _ := newTestService(t)
	q.err = ErrQueueFull

	res, err := svc.Submit(context.Background(), siteRoot, nil)
	require.ErrorIs(t, err, ErrQueueFull)
	require.NotNil(t, res)
	assert.Equal(t, model.ScanFailed, res.Status)

	scan, err := h.tracker.GetScan(context.Background(), res.PublicID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanFailed, scan.Status)
	assert.Equal(t, BusyMessage, scan.ErrorMessage)
	assert.NotNil(t, scan.FinishedAt)
}

func TestStatus_ValidatesAndSweeps(t *testing.T) {
	t.Parallel()

	svc, _, _, sw := newTestService(t)

	_, err := svc.Status(context.Background(), "../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, sw.calls)

	_, err = svc.Status(context.Background(), "scan_AAAAAAAAAA")
	require.ErrorIs(t, err, tracker.ErrScanNotFound)
	assert.Equal(t, 1, sw.calls)
}

func TestStatusAndReport_AfterExecution(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]testutil.DummyRoute{
		siteRoot:              {Result: imageAltResult()},
		"https://site.test/x": {Status: 500},
	}, siteRoot, "https://site.test/x")
	svc := NewService(h.cfg, h.comps, &recordingQueue{}, nil, h.logger)

	res, err := svc.Submit(context.Background(), siteRoot, model.Ptr(2))
	require.NoError(t, err)
	require.NoError(t, h.orch.ExecuteScan(context.Background(), res.PublicID))

	view, err := svc.Status(context.Background(), res.PublicID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, view.Status)
	assert.Equal(t, 2, view.Progress.TotalPages)
	assert.Equal(t, 2, view.Progress.ProcessedPages)
	assert.Equal(t, 1, view.Progress.SuccessPages)
	assert.Equal(t, 1, view.Progress.FailedPages)

	rep, err := svc.Report(context.Background(), res.PublicID)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Summary.TotalViolations)
	assert.Equal(t, 2, rep.Summary.SeverityCounts[model.SeverityCritical])
	assert.Equal(t, 1, rep.Summary.NeedsReview)
	require.NotNil(t, rep.Score)
	assert.Less(t, rep.Score.Score, 100)
	assert.Equal(t, 1, rep.Score.Reliability.SuccessPages)
	require.NotEmpty(t, rep.TopRules)
	assert.Equal(t, "image-alt", rep.TopRules[0].RuleID)
}
