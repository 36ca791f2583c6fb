package analyzer

import (
	"encoding/json"
	"strings"
)

// Result is the subset of an engine run the scanner keeps.
type Result struct {
	Violations []Finding `json:"violations"`
	Incomplete []Finding `json:"incomplete"`

	// Strategy names the strategy that produced the result.
	Strategy string `json:"-"`
}

// Finding is one rule outcome as reported by the engine.
type Finding struct {
	ID          string        `json:"id"`
	Impact      string        `json:"impact"`
	Description string        `json:"description"`
	Help        string        `json:"help"`
	HelpURL     string        `json:"helpUrl"`
	Tags        []string      `json:"tags"`
	Nodes       []FindingNode `json:"nodes"`
}

// FindingNode is one affected element. Target is a selector list whose
// entries are strings or, for shadow DOM and frames, nested string lists.
type FindingNode struct {
	HTML           string          `json:"html"`
	Target         json.RawMessage `json:"target"`
	FailureSummary string          `json:"failureSummary"`
}

// TargetSelector flattens Target into a single selector string.
func (n FindingNode) TargetSelector() string {
	if len(n.Target) == 0 {
		return ""
	}
	var parts []any
	if err := json.Unmarshal(n.Target, &parts); err != nil {
		var single string
		if json.Unmarshal(n.Target, &single) == nil {
			return single
		}
		return ""
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			out = append(out, v)
		case []any:
			chain := make([]string, 0, len(v))
			for _, s := range v {
				if str, ok := s.(string); ok {
					chain = append(chain, str)
				}
			}
			out = append(out, strings.Join(chain, " >>> "))
		}
	}
	return strings.Join(out, ", ")
}
