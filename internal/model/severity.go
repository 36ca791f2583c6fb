package model

import "strings"

// Severity is the impact class reported by the rule engine.
// Ordering: critical > serious > moderate > minor > unknown.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeveritySerious  Severity = "serious"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
	SeverityUnknown  Severity = "unknown"
)

// Severities lists every class from most to least severe.
var Severities = []Severity{SeverityCritical, SeveritySerious, SeverityModerate, SeverityMinor, SeverityUnknown}

// ParseSeverity maps an engine impact string onto a Severity; anything unrecognised is unknown.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeveritySerious:
		return SeveritySerious
	case SeverityModerate:
		return SeverityModerate
	case SeverityMinor:
		return SeverityMinor
	default:
		return SeverityUnknown
	}
}

// Rank returns a comparable weight; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeveritySerious:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// MoreSevere reports whether s outranks other.
func (s Severity) MoreSevere(other Severity) bool {
	return s.Rank() > other.Rank()
}
