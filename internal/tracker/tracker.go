package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/raysh454/a11yscan/internal/model"
)

var (
	ErrScanNotFound = errors.New("scan not found")
	ErrPageNotFound = errors.New("page not found")

	// ErrAlreadyTerminal is returned when finishing a scan or page that has
	// already reached a terminal status.
	ErrAlreadyTerminal = errors.New("already in a terminal status")
)

// Tracker persists scans, their pages and the issues found on each page.
// Implementations must be safe for concurrent use; every write touches a
// single scan or page.
type Tracker interface {
	// CreateScan inserts a queued scan and fills in its ID and CreatedAt.
	CreateScan(ctx context.Context, scan *model.Scan) error

	GetScan(ctx context.Context, publicID string) (*model.Scan, error)
	GetScanByID(ctx context.Context, id int64) (*model.Scan, error)

	// MarkScanRunning sets status running and StartedAt, clearing any error message.
	MarkScanRunning(ctx context.Context, scanID int64, at time.Time) error

	// FinishScan moves a scan to a terminal status and sets FinishedAt.
	FinishScan(ctx context.Context, scanID int64, status model.ScanStatus, message string, at time.Time) error

	// CreatePages bulk-inserts queued pages, using each URL's index as its ordinal.
	CreatePages(ctx context.Context, scanID int64, urls []string, at time.Time) ([]model.Page, error)

	// ListPages returns a scan's pages in ordinal order.
	ListPages(ctx context.Context, scanID int64) ([]model.Page, error)

	MarkPageRunning(ctx context.Context, pageID int64, at time.Time) error
	FinishPage(ctx context.Context, outcome model.PageOutcome, at time.Time) error

	InsertIssues(ctx context.Context, pageID int64, issues []model.Issue, at time.Time) error
	ListIssues(ctx context.Context, pageID int64) ([]model.Issue, error)

	// ListScanIssues returns every issue of a scan ordered by page then insertion.
	ListScanIssues(ctx context.Context, scanID int64) ([]model.Issue, error)

	// ListStaleScans returns running, unfinished scans started before the cutoff.
	ListStaleScans(ctx context.Context, before time.Time) ([]model.Scan, error)

	// FailOpenPages fails every queued or running page of a scan and
	// reports how many were changed.
	FailOpenPages(ctx context.Context, scanID int64, code, message string, at time.Time) (int, error)

	Close() error
}
