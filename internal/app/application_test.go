package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/testutil"
)

func TestApplication_SubmitRunsToCompletion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string]testutil.DummyRoute{
		siteRoot:                  {Result: imageAltResult()},
		"https://site.test/about": {},
	}, siteRoot, "https://site.test/about")

	a := NewApplicationWith(h.cfg, h.comps, h.logger)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	res, err := a.Service.Submit(context.Background(), siteRoot, model.Ptr(5))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		view, err := a.Service.Status(context.Background(), res.PublicID)
		return err == nil && view.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	rep, err := a.Service.Report(context.Background(), res.PublicID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanCompleted, rep.Status)
	assert.Equal(t, 2, rep.Summary.SuccessPages)
	assert.Equal(t, "high", string(rep.Score.Reliability.Level))
}

func TestApplication_StartRecoversOrphans(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	scan := h.createScan(t, siteRoot, 1)
	require.NoError(t, h.tracker.MarkScanRunning(context.Background(), scan.ID, h.clock.Now()))
	h.clock.Advance(h.cfg.StaleAfter + time.Minute)

	a := NewApplicationWith(h.cfg, h.comps, h.logger)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	got, err := h.tracker.GetScan(context.Background(), scan.PublicID)
	require.NoError(t, err)
	assert.Equal(t, model.ScanFailed, got.Status)
	assert.Equal(t, InterruptedMessage, got.ErrorMessage)
}

func TestApplication_NilReceiver(t *testing.T) {
	t.Parallel()

	var a *Application
	assert.Error(t, a.Start(context.Background()))
	assert.Error(t, a.Shutdown(context.Background()))
}
