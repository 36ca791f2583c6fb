package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/raysh454/a11yscan/internal/logging"
)

// ChromeLauncher owns one browser process; every session gets its own
// browser context so no cookies, storage or cache are shared.
type ChromeLauncher struct {
	cfg    Config
	logger logging.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	closed      bool
}

func NewChromeLauncher(cfg Config, logger logging.Logger) *ChromeLauncher {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultConfig().StartTimeout
	}
	return &ChromeLauncher{
		cfg:    cfg,
		logger: logging.OrNop(logger).With(logging.F("component", "browser")),
	}
}

// Start launches the browser process. NewSession calls it lazily.
func (l *ChromeLauncher) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startLocked(ctx)
}

func (l *ChromeLauncher) startLocked(ctx context.Context) error {
	if l.closed {
		return ErrClosed
	}
	if l.rootCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("no-sandbox", l.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx)

	startCtx, cancel := context.WithTimeout(rootCtx, l.cfg.StartTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(startCtx); err != nil {
		rootCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	l.allocCancel = allocCancel
	l.rootCtx = rootCtx
	l.rootCancel = rootCancel
	l.logger.Info("browser started", logging.F("headless", l.cfg.Headless))
	return nil
}

// NewSession opens a tab in a fresh browser context with filter applied to
// every outgoing request.
func (l *ChromeLauncher) NewSession(ctx context.Context, filter RequestFilter) (Page, error) {
	l.mu.Lock()
	if err := l.startLocked(ctx); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	root := l.rootCtx
	l.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(root, chromedp.WithNewBrowserContext())
	return openPage(ctx, tabCtx, tabCancel, filter, l.logger)
}

func (l *ChromeLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.rootCancel != nil {
		l.rootCancel()
		l.allocCancel()
		l.logger.Info("browser stopped")
	}
	return nil
}

// chromePage is a single chromedp target.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	filter RequestFilter
	logger logging.Logger

	inflight     atomic.Int32
	lastActivity atomic.Int64
	closeOnce    sync.Once
}

func openPage(ctx, tabCtx context.Context, tabCancel context.CancelFunc, filter RequestFilter, logger logging.Logger) (*chromePage, error) {
	p := &chromePage{
		ctx:    tabCtx,
		cancel: tabCancel,
		filter: filter,
		logger: logger,
	}
	p.lastActivity.Store(time.Now().UnixNano())

	chromedp.ListenTarget(tabCtx, p.onEvent)

	actions := []chromedp.Action{network.Enable()}
	if filter != nil {
		actions = append(actions, fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}))
	}
	if err := p.run(ctx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return p, nil
}

func (p *chromePage) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.inflight.Add(1)
		p.touch()
	case *network.EventLoadingFinished, *network.EventLoadingFailed:
		if p.inflight.Add(-1) < 0 {
			p.inflight.Store(0)
		}
		p.touch()
	case *fetch.EventRequestPaused:
		go p.decide(e)
	}
}

func (p *chromePage) touch() { p.lastActivity.Store(time.Now().UnixNano()) }

// decide runs outside the event loop; listeners must not block.
func (p *chromePage) decide(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(p.ctx, c.Target)

	if err := allowRequest(p.ctx, p.filter, ev.Request.URL); err != nil {
		p.logger.Warn("blocked browser request", logging.F("url", ev.Request.URL), logging.Err(err))
		_ = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
		return
	}
	_ = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
}

// allowRequest lets inline schemes through and passes http(s) to filter.
func allowRequest(ctx context.Context, filter RequestFilter, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	switch strings.ToLower(u.Scheme) {
	case "data", "blob", "about":
		return nil
	case "http", "https":
		if filter == nil {
			return nil
		}
		return filter(ctx, rawURL)
	default:
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
}

// bind derives a tab context that honours ctx's deadline and cancellation.
func (p *chromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.ctx)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		stop := context.AfterFunc(ctx, cancel)
		return runCtx, func() { stop(); cancelDL(); cancel() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() { stop(); cancel() }
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, done := p.bind(ctx)
	defer done()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, target string) (*NavResponse, error) {
	runCtx, done := p.bind(ctx)
	defer done()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(target))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, err
	}
	if resp == nil {
		return &NavResponse{URL: target}, nil
	}
	return &NavResponse{
		Status:   int(resp.Status),
		MimeType: strings.ToLower(resp.MimeType),
		URL:      resp.URL,
	}, nil
}

// WaitNetworkIdle returns once no request has been in flight for quiet, or
// with ctx's error.
func (p *chromePage) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		idleFor := time.Since(time.Unix(0, p.lastActivity.Load()))
		if p.inflight.Load() == 0 && idleFor >= quiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return ErrClosed
		case <-ticker.C:
		}
	}
}

func (p *chromePage) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.run(ctx, chromedp.Evaluate(script, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *chromePage) AddScriptTag(ctx context.Context, source string) error {
	literal, err := json.Marshal(source)
	if err != nil {
		return err
	}
	script := `(() => {
  const s = document.createElement("script");
  s.textContent = ` + string(literal) + `;
  (document.head || document.documentElement).appendChild(s);
  return true;
})()`
	return p.Evaluate(ctx, script, nil)
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) NewBlankPage(ctx context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(p.ctx)
	np, err := openPage(ctx, tabCtx, tabCancel, p.filter, p.logger)
	if err != nil {
		return nil, err
	}
	if err := np.run(ctx, chromedp.Navigate("about:blank")); err != nil {
		_ = np.Close()
		return nil, fmt.Errorf("open blank page: %w", err)
	}
	return np, nil
}

func (p *chromePage) SetContent(ctx context.Context, html string) error {
	return p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		tree, err := page.GetFrameTree().Do(c)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(c)
	}))
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}
