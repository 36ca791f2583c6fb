package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/raysh454/a11yscan/internal/assessor"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
	"github.com/raysh454/a11yscan/internal/tracker"
	"github.com/raysh454/a11yscan/internal/utils"
)

// ErrInvalidInput wraps every rejection of caller-supplied data.
var ErrInvalidInput = errors.New("invalid input")

// BusyMessage is recorded on scans refused because the queue was full.
const BusyMessage = "the scanner is busy, please try again later"

var publicIDPattern = regexp.MustCompile(`^scan_[A-Za-z0-9_-]{10}$`)

// NewPublicID returns "scan_" followed by 10 URL-safe random characters.
func NewPublicID() string {
	id := uuid.New()
	return "scan_" + base64.RawURLEncoding.EncodeToString(id[:])[:10]
}

func ValidPublicID(id string) bool { return publicIDPattern.MatchString(id) }

// Enqueuer admits scans for execution.
type Enqueuer interface {
	Enqueue(publicID string) error
}

// Sweeper runs throttled stale-scan recovery.
type Sweeper interface {
	MaybeSweep(ctx context.Context)
}

// SubmitResult is handed back to the caller of Submit.
type SubmitResult struct {
	PublicID string           `json:"publicId"`
	Status   model.ScanStatus `json:"status"`
}

// Service is the request intake boundary: it validates input, creates scans
// and reads their status and reports.
type Service struct {
	cfg      *Config
	tracker  tracker.Tracker
	queue    Enqueuer
	sweeper  Sweeper
	guard    URLGuard
	assessor assessor.Assessor
	clock    Clock
	logger   logging.Logger
}

func NewService(cfg *Config, comps *Components, queue Enqueuer, sweeper Sweeper, logger logging.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	clock := comps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	log := logging.OrNop(logger).With(logging.F("component", "service"))
	return &Service{
		cfg:      cfg,
		tracker:  comps.Tracker,
		queue:    queue,
		sweeper:  sweeper,
		guard:    comps.Guard,
		assessor: assessor.NewCurveAssessor(cfg.Assessor, log),
		clock:    clock,
		logger:   log,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Submit validates rawURL, creates a queued scan and admits it. maxPages nil
// means the configured default. When the queue is full the scan is recorded
// as failed and the returned error wraps ErrQueueFull alongside the result.
func (s *Service) Submit(ctx context.Context, rawURL string, maxPages *int) (*SubmitResult, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, invalid("url is required")
	}
	if len(raw) > s.cfg.MaxURLLength {
		return nil, invalid("url is longer than %d characters", s.cfg.MaxURLLength)
	}

	input := utils.EnsureScheme(raw)
	u, err := url.Parse(input)
	if err != nil || u.Hostname() == "" {
		return nil, invalid("url is malformed")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, invalid("only http and https urls can be scanned")
	}
	root, err := utils.Normalize(input)
	if err != nil {
		return nil, invalid("url is malformed")
	}
	if err := s.guard.CheckURL(ctx, root); err != nil {
		s.logger.Warn("rejecting unsafe scan target", logging.F("url", root), logging.Err(err))
		return nil, invalid("this host cannot be scanned")
	}

	scan := &model.Scan{
		PublicID:          NewPublicID(),
		InputURL:          input,
		NormalizedRootURL: root,
		MaxPages:          s.cfg.ClampMaxPages(maxPages),
		Status:            model.ScanQueued,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.tracker.CreateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}

	if err := s.queue.Enqueue(scan.PublicID); err != nil {
		if ferr := s.tracker.FinishScan(ctx, scan.ID, model.ScanFailed, BusyMessage, s.clock.Now()); ferr != nil {
			s.logger.Error("failed to record refused scan", logging.F("scan_id", scan.PublicID), logging.Err(ferr))
		}
		return &SubmitResult{PublicID: scan.PublicID, Status: model.ScanFailed}, fmt.Errorf("enqueue scan: %w", err)
	}

	s.logger.Info("scan submitted",
		logging.F("scan_id", scan.PublicID), logging.F("root", root), logging.F("max_pages", scan.MaxPages))
	return &SubmitResult{PublicID: scan.PublicID, Status: scan.Status}, nil
}

// Status returns the scan with its pages and findings.
func (s *Service) Status(ctx context.Context, publicID string) (*report.ScanView, error) {
	if !ValidPublicID(publicID) {
		return nil, invalid("malformed scan id")
	}
	if s.sweeper != nil {
		s.sweeper.MaybeSweep(ctx)
	}

	scan, err := s.tracker.GetScan(ctx, publicID)
	if err != nil {
		return nil, err
	}
	pages, err := s.tracker.ListPages(ctx, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	issues, err := s.tracker.ListScanIssues(ctx, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return report.BuildView(scan, pages, issues), nil
}

// Report summarises and scores the scan.
func (s *Service) Report(ctx context.Context, publicID string) (*report.ScanReport, error) {
	view, err := s.Status(ctx, publicID)
	if err != nil {
		return nil, err
	}
	return report.BuildReport(view, s.assessor), nil
}
