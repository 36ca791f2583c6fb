package report_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/assessor"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
)

func fixture() (*model.Scan, []model.Page, []model.Issue) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	finished := created.Add(2 * time.Minute)
	scan := &model.Scan{
		ID: 1, PublicID: "scan_abcdefghij", InputURL: "https://example.com",
		NormalizedRootURL: "https://example.com/", MaxPages: 3,
		Status: model.ScanCompleted, CreatedAt: created, FinishedAt: &finished,
	}
	pages := []model.Page{
		{ID: 10, ScanID: 1, URL: "https://example.com/", OrderIndex: 0, Status: model.PageSuccess},
		{ID: 11, ScanID: 1, URL: "https://example.com/contact", OrderIndex: 1, Status: model.PageSuccess},
		{ID: 12, ScanID: 1, URL: "https://example.com/missing", OrderIndex: 2, Status: model.PageFailed, ErrorCode: model.CodeHTTPError},
	}
	issues := []model.Issue{
		{PageID: 10, Type: model.IssueViolation, RuleID: "image-alt", Impact: model.SeverityCritical, NodeCount: 2, Tags: []string{"wcag2a"}},
		{PageID: 10, Type: model.IssueIncomplete, RuleID: "color-contrast", Impact: model.SeveritySerious, NodeCount: 4},
		{PageID: 11, Type: model.IssueViolation, RuleID: "image-alt", Impact: model.SeverityCritical, NodeCount: 1, Tags: []string{"wcag2a"}},
		{PageID: 11, Type: model.IssueViolation, RuleID: "region", Impact: model.SeverityModerate, NodeCount: 5, Tags: []string{"best-practice"}},
		{PageID: 11, Type: model.IssueViolation, RuleID: "odd", Impact: model.SeverityUnknown, NodeCount: 1},
	}
	return scan, pages, issues
}

// ─── View ──────────────────────────────────────────────────────────────

func TestBuildView_GroupsIssuesAndCountsProgress(t *testing.T) {
	scan, pages, issues := fixture()
	v := report.BuildView(scan, pages, issues)

	require.Len(t, v.Pages, 3)
	assert.Len(t, v.Pages[0].Violations, 1)
	assert.Len(t, v.Pages[0].Incompletes, 1)
	assert.Len(t, v.Pages[1].Violations, 3)
	assert.NotNil(t, v.Pages[2].Violations)

	assert.Equal(t, report.Progress{TotalPages: 3, ProcessedPages: 3, SuccessPages: 2, FailedPages: 1}, v.Progress)
}

// ─── Report ────────────────────────────────────────────────────────────

func TestBuildReport_Summary(t *testing.T) {
	scan, pages, issues := fixture()
	r := report.BuildReport(report.BuildView(scan, pages, issues), assessor.NewCurveAssessor(assessor.DefaultConfig(), nil))

	assert.Equal(t, "scan_abcdefghij", r.PublicID)
	assert.Equal(t, *scan.FinishedAt, r.Summary.ExecutedAt)
	assert.Equal(t, 9, r.Summary.TotalViolations)
	assert.Equal(t, 3, r.Summary.SeverityCounts[model.SeverityCritical])
	assert.Equal(t, 5, r.Summary.SeverityCounts[model.SeverityModerate])
	assert.Equal(t, 1, r.Summary.SeverityCounts[model.SeverityUnknown])
	assert.Equal(t, 0, r.Summary.SeverityCounts[model.SeverityMinor])
	assert.Equal(t, 1, r.Summary.NeedsReview)

	require.NotNil(t, r.Score)
	assert.Equal(t, 2, r.Score.PageCount)
	assert.Equal(t, assessor.ReliabilityLow, r.Score.Reliability.Level)

	require.NotEmpty(t, r.TopRules)
	top := r.TopRules[0]
	assert.Equal(t, "image-alt", top.RuleID)
	assert.Equal(t, 2, top.Pages)
	assert.Equal(t, 3, top.Nodes)
	assert.Equal(t, []string{"WCAG 2.0 A"}, top.Standard)
}

func TestBuildReport_ExecutedAtFallsBackToCreated(t *testing.T) {
	scan, pages, issues := fixture()
	scan.FinishedAt = nil
	scan.Status = model.ScanRunning
	r := report.BuildReport(report.BuildView(scan, pages, issues), assessor.NewCurveAssessor(assessor.DefaultConfig(), nil))
	assert.Equal(t, scan.CreatedAt, r.Summary.ExecutedAt)
}

// ─── Tags ──────────────────────────────────────────────────────────────

func TestFormatStandardTag(t *testing.T) {
	cases := map[string]string{
		"wcag2a":        "WCAG 2.0 A",
		"wcag21aa":      "WCAG 2.1 AA",
		"WCAG22AAA":     "WCAG 2.2 AAA",
		"best-practice": "Best Practice",
		"wcag111":       "wcag111",
		"cat.color":     "cat.color",
	}
	for in, want := range cases {
		assert.Equal(t, want, report.FormatStandardTag(in), in)
	}
}

func TestStandardTagLabels(t *testing.T) {
	got := report.StandardTagLabels([]string{"cat.forms", "wcag21aa", "best-practice", "wcag21aa"})
	assert.Equal(t, []string{"WCAG 2.1 AA", "Best Practice"}, got)
}
