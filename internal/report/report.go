// Package report shapes stored scans into the status view and final report
// handed to API clients.
package report

import (
	"time"

	"github.com/raysh454/a11yscan/internal/assessor"
	"github.com/raysh454/a11yscan/internal/model"
)

// Progress counts page outcomes so far. Skipped pages are processed but
// neither successful nor failed.
type Progress struct {
	TotalPages     int `json:"totalPages"`
	ProcessedPages int `json:"processedPages"`
	SuccessPages   int `json:"successPages"`
	FailedPages    int `json:"failedPages"`
	SkippedPages   int `json:"skippedPages"`
}

// ScanView is the polling view of a scan.
type ScanView struct {
	PublicID          string             `json:"publicId"`
	Status            model.ScanStatus   `json:"status"`
	InputURL          string             `json:"inputUrl"`
	NormalizedRootURL string             `json:"normalizedRootUrl"`
	MaxPages          int                `json:"maxPages"`
	Progress          Progress           `json:"progress"`
	Pages             []model.PageResult `json:"pages"`
	ErrorMessage      string             `json:"errorMessage,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	StartedAt         *time.Time         `json:"startedAt,omitempty"`
	FinishedAt        *time.Time         `json:"finishedAt,omitempty"`
}

type Summary struct {
	InputURL     string    `json:"inputUrl"`
	ExecutedAt   time.Time `json:"executedAt"`
	TotalPages   int       `json:"totalPages"`
	SuccessPages int       `json:"successPages"`
	FailedPages  int       `json:"failedPages"`
	SkippedPages int       `json:"skippedPages"`
	// TotalViolations is node-weighted: one rule failing on five elements counts five.
	TotalViolations int                    `json:"totalViolations"`
	SeverityCounts  map[model.Severity]int `json:"severityCounts"`
	// NeedsReview counts incomplete findings that need a human decision.
	NeedsReview int `json:"needsReview"`
}

// ScanReport is the final report of a scan.
type ScanReport struct {
	PublicID string                `json:"publicId"`
	Status   model.ScanStatus      `json:"status"`
	Summary  Summary               `json:"summary"`
	Score    *assessor.ScoreResult `json:"score"`
	TopRules []RuleSummary         `json:"topRules"`
	Pages    []model.PageResult    `json:"pages"`
}

// BuildView groups issues under their pages. pages must be in ordinal order.
func BuildView(scan *model.Scan, pages []model.Page, issues []model.Issue) *ScanView {
	byPage := make(map[int64][]model.Issue, len(pages))
	for _, i := range issues {
		byPage[i.PageID] = append(byPage[i.PageID], i)
	}

	v := &ScanView{
		PublicID:          scan.PublicID,
		Status:            scan.Status,
		InputURL:          scan.InputURL,
		NormalizedRootURL: scan.NormalizedRootURL,
		MaxPages:          scan.MaxPages,
		ErrorMessage:      scan.ErrorMessage,
		CreatedAt:         scan.CreatedAt,
		StartedAt:         scan.StartedAt,
		FinishedAt:        scan.FinishedAt,
		Pages:             make([]model.PageResult, 0, len(pages)),
	}

	for _, p := range pages {
		pr := model.PageResult{Page: p, Violations: []model.Issue{}, Incompletes: []model.Issue{}}
		for _, i := range byPage[p.ID] {
			if i.Type == model.IssueIncomplete {
				pr.Incompletes = append(pr.Incompletes, i)
			} else {
				pr.Violations = append(pr.Violations, i)
			}
		}
		v.Pages = append(v.Pages, pr)

		v.Progress.TotalPages++
		switch p.Status {
		case model.PageSuccess:
			v.Progress.SuccessPages++
		case model.PageFailed:
			v.Progress.FailedPages++
		case model.PageSkipped:
			v.Progress.SkippedPages++
		}
	}
	v.Progress.ProcessedPages = v.Progress.SuccessPages + v.Progress.FailedPages + v.Progress.SkippedPages
	return v
}

// BuildReport summarises a view and scores it with a.
func BuildReport(view *ScanView, a assessor.Assessor) *ScanReport {
	executed := view.CreatedAt
	if view.FinishedAt != nil {
		executed = *view.FinishedAt
	}

	sum := Summary{
		InputURL:       view.InputURL,
		ExecutedAt:     executed,
		TotalPages:     view.Progress.TotalPages,
		SuccessPages:   view.Progress.SuccessPages,
		FailedPages:    view.Progress.FailedPages,
		SkippedPages:   view.Progress.SkippedPages,
		SeverityCounts: make(map[model.Severity]int, len(model.Severities)),
	}
	for _, sev := range model.Severities {
		sum.SeverityCounts[sev] = 0
	}
	for _, p := range view.Pages {
		for _, i := range p.Violations {
			n := max(i.NodeCount, len(i.Nodes))
			sum.TotalViolations += n
			sum.SeverityCounts[model.ParseSeverity(string(i.Impact))] += n
		}
		sum.NeedsReview += len(p.Incompletes)
	}

	return &ScanReport{
		PublicID: view.PublicID,
		Status:   view.Status,
		Summary:  sum,
		Score:    a.Score(view.Pages),
		TopRules: TopRules(view.Pages, 10),
		Pages:    view.Pages,
	}
}
