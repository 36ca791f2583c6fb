package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/raysh454/a11yscan/internal/analyzer"
	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/enumerator"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/netguard"
	"github.com/raysh454/a11yscan/internal/robots"
	"github.com/raysh454/a11yscan/internal/tracker"
	"github.com/raysh454/a11yscan/internal/webclient"
)

// Components are the collaborators a scan needs. Tests assemble them from
// fakes; NewComponents builds the production set.
type Components struct {
	Tracker    tracker.Tracker
	Policy     PolicyResolver
	Discoverer PageDiscoverer
	Launcher   browser.Launcher
	Runner     EngineRunner
	Guard      URLGuard
	Clock      Clock

	closers []func() error
}

// NewComponents builds the production components for cfg.
func NewComponents(cfg *Config, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()

	engine, err := analyzer.LoadEngine(cfg.AxeSourcePath)
	if err != nil {
		return nil, fmt.Errorf("load axe-core: %w", err)
	}

	var tr tracker.Tracker
	if cfg.UseMemoryStore {
		tr = tracker.NewInMemoryTracker(logger)
	} else {
		if err := os.MkdirAll(cfg.Tracker.StoragePath, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		st, err := tracker.NewSQLiteTracker(&cfg.Tracker, logger)
		if err != nil {
			return nil, fmt.Errorf("new tracker: %w", err)
		}
		tr = st
	}

	guard := netguard.NewGuard(cfg.Guard, nil, logger)
	wc, err := webclient.NewNetHTTPClient(cfg.WebClient, guard, logger, nil)
	if err != nil {
		_ = tr.Close()
		return nil, fmt.Errorf("new webclient: %w", err)
	}

	launcher := browser.NewChromeLauncher(cfg.Browser, logger)

	return &Components{
		Tracker:    tr,
		Policy:     robots.NewResolver(wc, logger, 0),
		Discoverer: enumerator.NewDiscoverer(cfg.Discovery, wc, logger),
		Launcher:   launcher,
		Runner:     analyzer.NewRunner(engine, logger),
		Guard:      guard,
		Clock:      systemClock{},
		closers:    []func() error{launcher.Close, wc.Close, tr.Close},
	}, nil
}

// Close releases the browser, the web client and the store.
// Any ongoing page audit will fail.
func (c *Components) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
