package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
)

// Application is the runtime state container. It owns the scan components
// and the services built on them; pass it to the HTTP server or CLI rather
// than reaching for package-level state.
type Application struct {
	Config *Config
	Logger logging.Logger

	Components *Components
	Events     *EventBus
	Orch       *Orchestrator
	Queue      *JobQueue
	Recovery   *Recovery
	Service    *Service
}

// NewApplication builds the production components for cfg and wires them.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	comps, err := NewComponents(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build components: %w", err)
	}
	return NewApplicationWith(cfg, comps, logger), nil
}

// NewApplicationWith wires already-constructed components.
func NewApplicationWith(cfg *Config, comps *Components, logger logging.Logger) *Application {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	logger = logging.OrNop(logger)

	events := NewEventBus(logger)
	orch := NewOrchestrator(cfg, comps, events, logger)
	queue := NewJobQueue(cfg, orch, logger)
	recovery := NewRecovery(cfg, comps.Tracker, comps.Clock, logger)
	recovery.PublishTo(events)

	return &Application{
		Config:     cfg,
		Logger:     logger,
		Components: comps,
		Events:     events,
		Orch:       orch,
		Queue:      queue,
		Recovery:   recovery,
		Service:    NewService(cfg, comps, queue, recovery, logger),
	}
}

// Start sweeps scans orphaned by a previous process, then starts the job
// queue and the recovery schedule.
func (a *Application) Start(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application starting",
		logging.F("concurrency", a.Config.Concurrency),
		logging.F("scan_concurrency", a.Config.ScanConcurrency))

	a.Recovery.MaybeSweep(ctx)
	a.Queue.Start(ctx)
	a.Recovery.Start(ctx)
	return nil
}

// Shutdown stops accepting scans, waits for running ones within a bounded
// time and releases the components.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	a.Recovery.Stop()
	var errs []error
	if err := a.Queue.Stop(shutdownCtx); err != nil {
		a.Logger.Warn("queue stop returned error", logging.Err(err))
		errs = append(errs, err)
	}
	if err := a.Components.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close components: %w", err))
	}
	return errors.Join(errs...)
}
