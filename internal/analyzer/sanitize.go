package analyzer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/raysh454/a11yscan/internal/model"
)

// Limits bound what is stored per finding.
type Limits struct {
	MaxTags         int
	MaxNodes        int
	MaxHTMLChars    int
	MaxTargetChars  int
	MaxSummaryChars int
	MaxTextChars    int
}

func DefaultLimits() Limits {
	return Limits{
		MaxTags:         16,
		MaxNodes:        50,
		MaxHTMLChars:    500,
		MaxTargetChars:  300,
		MaxSummaryChars: 500,
		MaxTextChars:    2000,
	}
}

var standardTagPattern = regexp.MustCompile(`^wcag(?:2a|2aa|2aaa|21a|21aa|22a|22aa|22aaa)$`)

const bestPracticeTag = "best-practice"

// IsStandardTag reports WCAG level tags and best-practice.
func IsStandardTag(tag string) bool {
	t := strings.ToLower(tag)
	return t == bestPracticeTag || standardTagPattern.MatchString(t)
}

// ExtractStandardTags returns the de-duplicated, lowercased standard tags in input order.
func ExtractStandardTags(tags []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if !IsStandardTag(t) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Sanitize converts a result into bounded issues. NodeCount keeps the
// engine's full count even when Nodes is capped.
func Sanitize(res *Result, limits Limits) []model.Issue {
	if res == nil {
		return nil
	}
	out := make([]model.Issue, 0, len(res.Violations)+len(res.Incomplete))
	for _, f := range res.Violations {
		out = append(out, sanitizeFinding(f, model.IssueViolation, limits))
	}
	for _, f := range res.Incomplete {
		out = append(out, sanitizeFinding(f, model.IssueIncomplete, limits))
	}
	return out
}

func sanitizeFinding(f Finding, typ model.IssueType, limits Limits) model.Issue {
	issue := model.Issue{
		Type:        typ,
		RuleID:      truncate(f.ID, 200),
		Impact:      model.ParseSeverity(f.Impact),
		Description: truncate(f.Description, limits.MaxTextChars),
		Help:        truncate(f.Help, limits.MaxTextChars),
		HelpURL:     truncate(f.HelpURL, limits.MaxTextChars),
		Tags:        capTags(f.Tags, limits.MaxTags),
		NodeCount:   len(f.Nodes),
	}

	n := min(len(f.Nodes), limits.MaxNodes)
	issue.Nodes = make([]model.NodeDescriptor, 0, n)
	for _, node := range f.Nodes[:n] {
		issue.Nodes = append(issue.Nodes, model.NodeDescriptor{
			HTML:           truncate(node.HTML, limits.MaxHTMLChars),
			Target:         truncate(node.TargetSelector(), limits.MaxTargetChars),
			FailureSummary: truncate(node.FailureSummary, limits.MaxSummaryChars),
		})
	}
	return issue
}

// capTags keeps standard tags first, then the rest, up to limit.
func capTags(tags []string, limit int) []string {
	out := ExtractStandardTags(tags)
	seen := make(map[string]struct{}, len(out))
	for _, t := range out {
		seen[t] = struct{}{}
	}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxRunes])
}
