package model

import "time"

// ScanStatus is the lifecycle state of a Scan.
type ScanStatus string

const (
	ScanQueued    ScanStatus = "queued"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

// PageStatus is the lifecycle state of a Page.
type PageStatus string

const (
	PageQueued  PageStatus = "queued"
	PageRunning PageStatus = "running"
	PageSuccess PageStatus = "success"
	PageFailed  PageStatus = "failed"
	PageSkipped PageStatus = "skipped"
)

// Terminal reports whether no further transitions are possible.
func (s PageStatus) Terminal() bool {
	return s == PageSuccess || s == PageFailed || s == PageSkipped
}

// Page error codes recorded alongside failed/skipped pages.
const (
	CodeTimeout          = "timeout"
	CodeNavigationFailed = "navigation_failed"
	CodeHTTPError        = "http_error"
	CodeNonHTMLContent   = "non_html_content"
	CodeUnsafeHost       = "unsafe_host"
	CodeAxeUnavailable   = "axe_unavailable"
	CodeUnknown          = "unknown"
)

// Scan is one audit request.
type Scan struct {
	// ID is the internal row id.
	ID int64 `json:"-"`

	// PublicID is the opaque identifier handed to callers (scan_xxxxxxxxxx).
	PublicID string `json:"publicId"`

	// InputURL is the URL as the caller supplied it (scheme added if missing).
	InputURL string `json:"inputUrl"`

	// NormalizedRootURL is the canonical form of InputURL used for discovery.
	NormalizedRootURL string `json:"normalizedRootUrl"`

	// MaxPages is the requested page budget.
	MaxPages int `json:"maxPages"`

	Status ScanStatus `json:"status"`

	// ErrorMessage is a human-readable reason for a failed scan.
	ErrorMessage string `json:"errorMessage,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Page is one audited URL belonging to a Scan.
type Page struct {
	ID     int64 `json:"-"`
	ScanID int64 `json:"-"`

	URL           string `json:"url"`
	NormalizedURL string `json:"normalizedUrl"`

	// OrderIndex defines audit and display order; contiguous from zero per scan.
	OrderIndex int `json:"orderIndex"`

	Status       PageStatus `json:"status"`
	HTTPStatus   *int       `json:"httpStatus,omitempty"`
	ErrorCode    string     `json:"errorCode,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// PageOutcome is the terminal write for a page worker.
type PageOutcome struct {
	PageID       int64
	Status       PageStatus
	HTTPStatus   *int
	ErrorCode    string
	ErrorMessage string
}

// IssueType separates confirmed violations from findings that need manual review.
type IssueType string

const (
	IssueViolation  IssueType = "violation"
	IssueIncomplete IssueType = "incomplete"
)

// NodeDescriptor describes one affected DOM node. All strings are truncated at ingestion.
type NodeDescriptor struct {
	HTML           string `json:"html"`
	Target         string `json:"target"`
	FailureSummary string `json:"failureSummary,omitempty"`
}

// Issue is one rule finding for a page. Immutable once stored.
type Issue struct {
	ID     int64 `json:"-"`
	PageID int64 `json:"-"`

	Type        IssueType        `json:"type"`
	RuleID      string           `json:"id"`
	Impact      Severity         `json:"impact"`
	Description string           `json:"description"`
	Help        string           `json:"help"`
	HelpURL     string           `json:"helpUrl"`
	Tags        []string         `json:"tags"`
	NodeCount   int              `json:"nodeCount"`
	Nodes       []NodeDescriptor `json:"nodes"`
	CreatedAt   time.Time        `json:"-"`
}

// PageResult is a page together with its stored findings; the unit of scoring and reporting.
type PageResult struct {
	Page
	Violations  []Issue `json:"violations"`
	Incompletes []Issue `json:"incompletes"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
