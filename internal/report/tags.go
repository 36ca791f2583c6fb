package report

import (
	"regexp"
	"strings"

	"github.com/raysh454/a11yscan/internal/analyzer"
)

var wcagLevel = regexp.MustCompile(`^wcag(\d+)(a{1,3})$`)

// FormatStandardTag renders wcag21aa as "WCAG 2.1 AA" and best-practice as
// "Best Practice". Anything else is returned unchanged.
func FormatStandardTag(tag string) string {
	t := strings.ToLower(tag)
	if t == "best-practice" {
		return "Best Practice"
	}
	m := wcagLevel.FindStringSubmatch(t)
	if m == nil {
		return tag
	}
	version, level := m[1], strings.ToUpper(m[2])
	switch len(version) {
	case 1:
		return "WCAG " + version + ".0 " + level
	case 2:
		return "WCAG " + version[:1] + "." + version[1:] + " " + level
	default:
		return tag
	}
}

// StandardTagLabels formats the standard tags found in tags.
func StandardTagLabels(tags []string) []string {
	std := analyzer.ExtractStandardTags(tags)
	out := make([]string, 0, len(std))
	for _, t := range std {
		out = append(out, FormatStandardTag(t))
	}
	return out
}
