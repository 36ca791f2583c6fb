package assessor

import (
	"math"

	"github.com/raysh454/a11yscan/internal/model"
)

// Curve shapes the deduction for one severity class:
//
//	Cap * (1 - exp(-K * f(rate) * (1 + log10(nodes+1)/D)))
//
// where f is sqrt when SqrtRate is set and identity otherwise.
type Curve struct {
	Cap      float64 `json:"cap"`
	K        float64 `json:"k"`
	D        float64 `json:"d"`
	SqrtRate bool    `json:"sqrt_rate"`
}

// Config holds the scoring policy.
type Config struct {
	// ScoringVersion allows safe evolution of scoring logic.
	ScoringVersion string `json:"scoring_version"`

	Curves map[model.Severity]Curve `json:"curves"`

	// OrderRatio bounds each class's deduction to this fraction of the class
	// above it at the same rate and node count. Must be in (0, 1).
	OrderRatio float64 `json:"order_ratio"`

	// MaxDeduction keeps the score above zero even for the worst sites.
	MaxDeduction float64 `json:"max_deduction"`

	GoodThreshold      int `json:"good_threshold"`
	NeedsWorkThreshold int `json:"needs_work_threshold"`
}

// DefaultConfig returns the calibrated curves. Critical saturates quickly so
// a single affected page hurts; minor and unknown are rate-compressed.
func DefaultConfig() Config {
	return Config{
		ScoringVersion: "curve-v2",
		Curves: map[model.Severity]Curve{
			model.SeverityCritical: {Cap: 45, K: 6, D: 3},
			model.SeveritySerious:  {Cap: 30, K: 3, D: 3},
			model.SeverityModerate: {Cap: 18, K: 2.5, D: 4},
			model.SeverityMinor:    {Cap: 8, K: 0.8, D: 5, SqrtRate: true},
			model.SeverityUnknown:  {Cap: 4, K: 0.8, D: 5, SqrtRate: true},
		},
		OrderRatio:         0.9,
		MaxDeduction:       95,
		GoodThreshold:      90,
		NeedsWorkThreshold: 50,
	}
}

// SeverityDeduction evaluates the curve for sev, bounded by OrderRatio times
// the deduction of each more severe class at the same rate and node count.
// At low rates the sqrt-compressed minor curve would otherwise overtake the
// linear moderate curve.
func (c Config) SeverityDeduction(sev model.Severity, rate float64, nodes int) float64 {
	ratio := c.OrderRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultConfig().OrderRatio
	}
	bound := math.Inf(1)
	for _, s := range model.Severities {
		d := math.Min(Deduction(c.Curves[s], rate, nodes), bound)
		if s == sev {
			return d
		}
		bound = d * ratio
	}
	return Deduction(c.Curves[sev], rate, nodes)
}
