package assessor

import (
	"math"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
)

// CurveAssessor scores with per-severity saturation curves.
type CurveAssessor struct {
	cfg    Config
	logger logging.Logger
}

// NewCurveAssessor builds an assessor. Missing curves fall back to the defaults.
func NewCurveAssessor(cfg Config, logger logging.Logger) *CurveAssessor {
	def := DefaultConfig()
	curves := make(map[model.Severity]Curve, len(def.Curves))
	for sev, c := range def.Curves {
		curves[sev] = c
	}
	for sev, c := range cfg.Curves {
		curves[sev] = c
	}
	cfg.Curves = curves
	if cfg.OrderRatio <= 0 || cfg.OrderRatio >= 1 {
		cfg.OrderRatio = def.OrderRatio
	}
	if cfg.MaxDeduction <= 0 || cfg.MaxDeduction > 100 {
		cfg.MaxDeduction = def.MaxDeduction
	}
	if cfg.GoodThreshold <= 0 {
		cfg.GoodThreshold = def.GoodThreshold
	}
	if cfg.NeedsWorkThreshold <= 0 {
		cfg.NeedsWorkThreshold = def.NeedsWorkThreshold
	}
	return &CurveAssessor{
		cfg:    cfg,
		logger: logging.OrNop(logger).With(logging.F("component", "assessor")),
	}
}

func (a *CurveAssessor) Score(pages []model.PageResult) *ScoreResult {
	res := &ScoreResult{
		Version:           a.cfg.ScoringVersion,
		NodeCounts:        make(map[model.Severity]int, len(model.Severities)),
		ImpactedPageRates: make(map[model.Severity]float64, len(model.Severities)),
		Deductions:        make(map[model.Severity]float64, len(model.Severities)),
		Reliability:       ComputeReliability(pages),
	}

	impactedPages := make(map[model.Severity]int, len(model.Severities))
	rules := map[string]struct{}{}
	for _, sev := range model.Severities {
		res.NodeCounts[sev] = 0
	}

	for _, p := range pages {
		if p.Status != model.PageSuccess {
			continue
		}
		res.PageCount++

		seen := map[model.Severity]bool{}
		for _, v := range p.Violations {
			sev := model.ParseSeverity(string(v.Impact))
			n := nodeCount(v)
			res.NodeCounts[sev] += n
			res.TotalNodes += n
			rules[v.RuleID] = struct{}{}
			seen[sev] = true
		}
		for sev := range seen {
			impactedPages[sev]++
		}
	}
	res.UniqueRules = len(rules)

	for _, sev := range model.Severities {
		rate := 0.0
		if res.PageCount > 0 {
			rate = float64(impactedPages[sev]) / float64(res.PageCount)
		}
		res.ImpactedPageRates[sev] = rate

		d := a.cfg.SeverityDeduction(sev, rate, res.NodeCounts[sev])
		res.Deductions[sev] = d
		res.TotalDeduction += d
	}
	res.TotalDeduction = math.Min(res.TotalDeduction, a.cfg.MaxDeduction)

	score := math.Max(0, math.Min(100, 100-res.TotalDeduction))
	res.Score = int(math.Round(score))
	res.Grade = a.grade(res.Score)
	res.Label = res.Grade.Label()

	a.logger.Debug("scored pages",
		logging.F("pages", res.PageCount),
		logging.F("score", res.Score),
		logging.F("reliability", res.Reliability.Level))
	return res
}

func (a *CurveAssessor) grade(score int) Grade {
	switch {
	case score >= a.cfg.GoodThreshold:
		return GradeGood
	case score >= a.cfg.NeedsWorkThreshold:
		return GradeNeedsWork
	default:
		return GradePoor
	}
}

// Deduction evaluates curve c. It is zero when rate or nodes is zero and
// grows monotonically in both.
func Deduction(c Curve, rate float64, nodes int) float64 {
	if rate <= 0 || nodes <= 0 || c.Cap <= 0 {
		return 0
	}
	rate = math.Min(rate, 1)
	f := rate
	if c.SqrtRate {
		f = math.Sqrt(rate)
	}
	d := c.D
	if d <= 0 {
		d = 1
	}
	growth := 1 + math.Log10(float64(nodes)+1)/d
	return c.Cap * (1 - math.Exp(-c.K*f*growth))
}

// ComputeReliability classifies page outcomes. Queued and running pages
// count as non-success.
func ComputeReliability(pages []model.PageResult) Reliability {
	var r Reliability
	for _, p := range pages {
		switch p.Status {
		case model.PageSuccess:
			r.SuccessPages++
		case model.PageSkipped:
			r.SkippedPages++
		default:
			r.FailedPages++
		}
	}
	total := len(pages)
	if total > 0 {
		r.SuccessRate = float64(r.SuccessPages) / float64(total)
	}
	nonSuccess := total - r.SuccessPages

	switch {
	case r.SuccessPages == 0:
		r.Level = ReliabilityLow
	case r.SuccessRate >= 0.9 && nonSuccess <= 1:
		r.Level = ReliabilityHigh
	case r.SuccessRate >= 0.7:
		r.Level = ReliabilityMedium
	default:
		r.Level = ReliabilityLow
	}
	return r
}

// nodeCount prefers the engine's full count over the capped node list.
func nodeCount(i model.Issue) int {
	if i.NodeCount > 0 {
		return i.NodeCount
	}
	return len(i.Nodes)
}
