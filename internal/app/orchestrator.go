package app

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/a11yscan/internal/analyzer"
	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/enumerator"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/tracker"
)

// PolicyResolver yields the crawl policy for a site root. It never fails.
type PolicyResolver interface {
	Resolve(ctx context.Context, rootURL string) robots.Rules
}

// PageDiscoverer gathers robots-allowed candidate URLs for a site root.
type PageDiscoverer interface {
	Discover(ctx context.Context, rootURL string, pageBudget int, rules robots.Rules) ([]string, error)
}

// EngineRunner runs the accessibility engine on a loaded page.
type EngineRunner interface {
	Run(ctx context.Context, page browser.Page) (*analyzer.Result, error)
}

// URLGuard rejects URLs whose host is unsafe to contact.
type URLGuard interface {
	CheckURL(ctx context.Context, rawURL string) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// errNoPages marks a scan for which selection produced nothing to audit.
var errNoPages = errors.New("no auditable pages were found (the site may disallow crawling)")

// Orchestrator drives one scan from discovery to its terminal state.
type Orchestrator struct {
	cfg        *Config
	tracker    tracker.Tracker
	policy     PolicyResolver
	discoverer PageDiscoverer
	launcher   browser.Launcher
	runner     EngineRunner
	guard      URLGuard
	clock      Clock
	events     *EventBus
	logger     logging.Logger
}

// NewOrchestrator ties the scan components together. events may be nil.
func NewOrchestrator(cfg *Config, comps *Components, events *EventBus, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	clock := comps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Orchestrator{
		cfg:        cfg,
		tracker:    comps.Tracker,
		policy:     comps.Policy,
		discoverer: comps.Discoverer,
		launcher:   comps.Launcher,
		runner:     comps.Runner,
		guard:      comps.Guard,
		clock:      clock,
		events:     events,
		logger:     logging.OrNop(logger).With(logging.F("component", "orchestrator")),
	}
}

// ExecuteScan runs the scan identified by publicID. Page-level failures are
// recorded on the page and never fail the scan; setup failures mark the scan
// failed and are returned.
func (o *Orchestrator) ExecuteScan(ctx context.Context, publicID string) error {
	scan, err := o.tracker.GetScan(ctx, publicID)
	if err != nil {
		return fmt.Errorf("load scan %s: %w", publicID, err)
	}
	if scan.Status.Terminal() {
		o.logger.Info("scan already finished", logging.F("scan_id", publicID), logging.F("status", string(scan.Status)))
		return nil
	}

	log := o.logger.With(logging.F("scan_id", publicID))
	if err := o.tracker.MarkScanRunning(ctx, scan.ID, o.clock.Now()); err != nil {
		return fmt.Errorf("mark scan running: %w", err)
	}
	o.events.Publish(JobEvent{ScanID: publicID, Type: JobEventStatus, Status: model.ScanRunning})
	log.Info("scan started", logging.F("root", scan.NormalizedRootURL), logging.F("max_pages", scan.MaxPages))

	pages, err := o.preparePages(ctx, scan)
	if err != nil {
		log.Error("scan setup failed", logging.Err(err))
		o.finishScan(ctx, scan, model.ScanFailed, setupMessage(err))
		return err
	}

	var processed atomic.Int64
	total := len(pages)
	o.events.Publish(JobEvent{ScanID: publicID, Type: JobEventProgress, Processed: 0, Total: total})

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for _, page := range pages {
		g.Go(func() error {
			o.processPage(ctx, page)
			n := processed.Add(1)
			o.events.Publish(JobEvent{ScanID: publicID, Type: JobEventProgress, Processed: int(n), Total: total})
			return nil
		})
	}
	_ = g.Wait()

	o.finishScan(ctx, scan, model.ScanCompleted, "")
	log.Info("scan completed", logging.F("pages", total))
	return nil
}

// preparePages resolves policy, discovers and prioritizes candidates and
// persists the selection in ordinal order.
func (o *Orchestrator) preparePages(ctx context.Context, scan *model.Scan) ([]model.Page, error) {
	root := scan.NormalizedRootURL
	rules := o.policy.Resolve(ctx, root)

	candidates, err := o.discoverer.Discover(ctx, root, scan.MaxPages, rules)
	if err != nil {
		if len(candidates) == 0 {
			return nil, fmt.Errorf("discover pages: %w", err)
		}
		o.logger.Warn("discovery finished with errors",
			logging.F("scan_id", scan.PublicID), logging.Err(err))
	}
	if len(candidates) == 0 {
		return nil, errNoPages
	}

	selected := enumerator.PrioritizeAllowed(root, candidates, scan.MaxPages, rules.Allowed)
	if len(selected) == 0 {
		return nil, errNoPages
	}

	pages, err := o.tracker.CreatePages(ctx, scan.ID, selected, o.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("create pages: %w", err)
	}
	return pages, nil
}

func (o *Orchestrator) finishScan(ctx context.Context, scan *model.Scan, status model.ScanStatus, message string) {
	err := o.tracker.FinishScan(ctx, scan.ID, status, message, o.clock.Now())
	switch {
	case errors.Is(err, tracker.ErrAlreadyTerminal):
		o.logger.Warn("scan was finished elsewhere", logging.F("scan_id", scan.PublicID))
	case err != nil:
		o.logger.Error("failed to finish scan", logging.F("scan_id", scan.PublicID), logging.Err(err))
	}
	o.events.Publish(JobEvent{ScanID: scan.PublicID, Type: JobEventStatus, Status: status, Error: message})
}

func setupMessage(err error) string {
	if errors.Is(err, errNoPages) {
		return errNoPages.Error()
	}
	return "scan setup failed: " + err.Error()
}

// processPage audits one page and writes its terminal state.
func (o *Orchestrator) processPage(ctx context.Context, page model.Page) {
	log := o.logger.With(logging.F("page_id", page.ID), logging.F("url", page.URL))

	if err := o.tracker.MarkPageRunning(ctx, page.ID, o.clock.Now()); err != nil {
		log.Warn("page not started", logging.Err(err))
		return
	}

	outcome := o.auditPage(ctx, page)
	outcome.PageID = page.ID
	if err := o.tracker.FinishPage(ctx, outcome, o.clock.Now()); err != nil {
		log.Warn("failed to record page outcome", logging.Err(err))
		return
	}
	if outcome.Status != model.PageSuccess {
		log.Info("page not audited",
			logging.F("status", string(outcome.Status)),
			logging.F("code", outcome.ErrorCode),
			logging.F("reason", outcome.ErrorMessage))
	}
}

func (o *Orchestrator) auditPage(ctx context.Context, page model.Page) model.PageOutcome {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PageTimeout)
	defer cancel()

	if err := o.guard.CheckURL(ctx, page.URL); err != nil {
		return failed(model.CodeUnsafeHost, "unsafe host: "+err.Error(), nil)
	}

	session, err := o.launcher.NewSession(ctx, o.requestFilter())
	if err != nil {
		return navigationFailure(ctx, fmt.Errorf("open browser session: %w", err))
	}
	defer session.Close()

	nav, err := session.Navigate(ctx, page.URL)
	if err != nil {
		return navigationFailure(ctx, err)
	}

	idleCtx, idleCancel := context.WithTimeout(ctx, o.cfg.NetworkIdleTimeout)
	err = session.WaitNetworkIdle(idleCtx, o.cfg.NetworkIdleQuiet)
	idleCancel()
	if err != nil {
		session.Sleep(ctx, o.cfg.SettleDelay)
	}

	finalURL, err := session.URL(ctx)
	if err != nil || finalURL == "" {
		finalURL = nav.URL
	}
	if err := o.guard.CheckURL(ctx, finalURL); err != nil {
		return failed(model.CodeUnsafeHost, "unsafe host after redirect: "+err.Error(), nil)
	}

	var httpStatus *int
	if nav.Status > 0 {
		httpStatus = model.Ptr(nav.Status)
	}
	if nav.Status >= 400 || (nav.Status > 0 && nav.Status < 200) {
		return failed(model.CodeHTTPError, fmt.Sprintf("HTTP status %d", nav.Status), httpStatus)
	}
	if !isHTML(nav.MimeType) {
		return failed(model.CodeNonHTMLContent, "not an HTML document ("+nav.MimeType+")", httpStatus)
	}

	res, err := o.runner.Run(ctx, session)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed(model.CodeTimeout, "page timed out during analysis", httpStatus)
		}
		return model.PageOutcome{
			Status:       model.PageSkipped,
			HTTPStatus:   httpStatus,
			ErrorCode:    model.CodeAxeUnavailable,
			ErrorMessage: err.Error(),
		}
	}

	issues := analyzer.Sanitize(res, o.cfg.Limits)
	if err := o.tracker.InsertIssues(ctx, page.ID, issues, o.clock.Now()); err != nil {
		return failed(model.CodeUnknown, "store findings: "+err.Error(), httpStatus)
	}
	return model.PageOutcome{Status: model.PageSuccess, HTTPStatus: httpStatus}
}

// requestFilter checks every browser request against the guard, resolving
// each origin once per session.
func (o *Orchestrator) requestFilter() browser.RequestFilter {
	var mu sync.Mutex
	verdicts := make(map[string]error)
	return func(ctx context.Context, rawURL string) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("parse request url: %w", err)
		}
		key := strings.ToLower(u.Scheme + "://" + u.Host)

		mu.Lock()
		verdict, seen := verdicts[key]
		mu.Unlock()
		if seen {
			return verdict
		}

		verdict = o.guard.CheckURL(ctx, rawURL)
		if ctx.Err() == nil {
			mu.Lock()
			verdicts[key] = verdict
			mu.Unlock()
		}
		return verdict
	}
}

func failed(code, message string, httpStatus *int) model.PageOutcome {
	return model.PageOutcome{
		Status:       model.PageFailed,
		HTTPStatus:   httpStatus,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

func navigationFailure(ctx context.Context, err error) model.PageOutcome {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		strings.Contains(strings.ToLower(msg), "timeout") {
		return failed(model.CodeTimeout, msg, nil)
	}
	return failed(model.CodeNavigationFailed, msg, nil)
}

// isHTML accepts documents without a declared type and any HTML media type.
func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(contentType)
	}
	return strings.Contains(mt, "text/html") || mt == "application/xhtml+xml"
}
