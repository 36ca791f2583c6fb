package report

import (
	"sort"

	"github.com/raysh454/a11yscan/internal/model"
)

// RuleSummary aggregates one rule's violations across pages.
type RuleSummary struct {
	RuleID   string         `json:"id"`
	Impact   model.Severity `json:"impact"`
	Help     string         `json:"help"`
	HelpURL  string         `json:"helpUrl"`
	Pages    int            `json:"pages"`
	Nodes    int            `json:"nodes"`
	Standard []string       `json:"standards"`
}

// TopRules ranks violated rules by severity, then affected pages, then nodes.
func TopRules(pages []model.PageResult, limit int) []RuleSummary {
	idx := map[string]*RuleSummary{}
	for _, p := range pages {
		seen := map[string]bool{}
		for _, v := range p.Violations {
			rs, ok := idx[v.RuleID]
			if !ok {
				rs = &RuleSummary{
					RuleID:   v.RuleID,
					Impact:   v.Impact,
					Help:     v.Help,
					HelpURL:  v.HelpURL,
					Standard: StandardTagLabels(v.Tags),
				}
				idx[v.RuleID] = rs
			}
			if v.Impact.MoreSevere(rs.Impact) {
				rs.Impact = v.Impact
			}
			rs.Nodes += max(v.NodeCount, len(v.Nodes))
			if !seen[v.RuleID] {
				seen[v.RuleID] = true
				rs.Pages++
			}
		}
	}

	out := make([]RuleSummary, 0, len(idx))
	for _, rs := range idx {
		out = append(out, *rs)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Impact.Rank() != b.Impact.Rank() {
			return a.Impact.Rank() > b.Impact.Rank()
		}
		if a.Pages != b.Pages {
			return a.Pages > b.Pages
		}
		if a.Nodes != b.Nodes {
			return a.Nodes > b.Nodes
		}
		return a.RuleID < b.RuleID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
