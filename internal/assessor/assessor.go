// Package assessor turns stored findings into a site score, a grade and a
// reliability signal. It performs no I/O.
package assessor

import "github.com/raysh454/a11yscan/internal/model"

// Assessor is the contract for scoring a scan's pages.
type Assessor interface {
	// Score aggregates violations over successful pages. Failed and skipped
	// pages only feed the reliability signal.
	Score(pages []model.PageResult) *ScoreResult
}

// Score rates pages with the default curves.
func Score(pages []model.PageResult) *ScoreResult {
	return NewCurveAssessor(DefaultConfig(), nil).Score(pages)
}
