package assessor

import "github.com/raysh454/a11yscan/internal/model"

// Grade buckets a score for display.
type Grade string

const (
	GradeGood      Grade = "good"
	GradeNeedsWork Grade = "needs-work"
	GradePoor      Grade = "poor"
)

// Label is the human-readable form of g.
func (g Grade) Label() string {
	switch g {
	case GradeGood:
		return "Good"
	case GradeNeedsWork:
		return "Needs work"
	default:
		return "Poor"
	}
}

// ReliabilityLevel says how much a score can be trusted.
type ReliabilityLevel string

const (
	ReliabilityHigh   ReliabilityLevel = "high"
	ReliabilityMedium ReliabilityLevel = "medium"
	ReliabilityLow    ReliabilityLevel = "low"
)

// Reliability is derived from page outcomes only, never from findings.
type Reliability struct {
	Level        ReliabilityLevel `json:"level"`
	SuccessRate  float64          `json:"successRate"`
	SuccessPages int              `json:"successPages"`
	FailedPages  int              `json:"failedPages"`
	SkippedPages int              `json:"skippedPages"`
}

type ScoreResult struct {
	// Score is the rounded result in [0 .. 100].
	Score int    `json:"score"`
	Grade Grade  `json:"grade"`
	Label string `json:"label"`

	// Version identifies the scoring curves used.
	Version string `json:"version"`

	// NodeCounts is the affected-node total per severity over successful pages.
	NodeCounts map[model.Severity]int `json:"severityCounts"`

	// ImpactedPageRates is the share of successful pages with at least one
	// violation of each severity.
	ImpactedPageRates map[model.Severity]float64 `json:"impactedPageRates"`

	Deductions     map[model.Severity]float64 `json:"deductions"`
	TotalDeduction float64                    `json:"totalDeduction"`

	TotalNodes  int `json:"totalNodes"`
	UniqueRules int `json:"uniqueRules"`
	// PageCount counts successful pages only.
	PageCount int `json:"pageCount"`

	Reliability Reliability `json:"reliability"`
}
