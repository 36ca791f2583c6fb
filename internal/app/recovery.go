package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/tracker"
)

// InterruptedMessage is written to scans and pages failed by recovery.
const InterruptedMessage = "scan interrupted (the server may have restarted)"

// Recovery fails scans left running by a process that went away.
type Recovery struct {
	tracker    tracker.Tracker
	clock      Clock
	staleAfter time.Duration
	interval   time.Duration
	events     *EventBus
	logger     logging.Logger

	mu        sync.Mutex
	lastSweep time.Time
	cron      *cron.Cron
}

func NewRecovery(cfg *Config, tr tracker.Tracker, clock Clock, logger logging.Logger) *Recovery {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	if clock == nil {
		clock = systemClock{}
	}
	return &Recovery{
		tracker:    tr,
		clock:      clock,
		staleAfter: cfg.StaleAfter,
		interval:   cfg.RecoveryInterval,
		logger:     logging.OrNop(logger).With(logging.F("component", "recovery")),
	}
}

// PublishTo makes the sweep announce recovered scans on bus.
func (r *Recovery) PublishTo(bus *EventBus) { r.events = bus }

// Sweep fails every stale scan together with its queued and running pages
// and returns how many scans it recovered. Running it again right away
// recovers nothing.
func (r *Recovery) Sweep(ctx context.Context) (int, error) {
	now := r.clock.Now()
	stale, err := r.tracker.ListStaleScans(ctx, now.Add(-r.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale scans: %w", err)
	}

	var errs []error
	recovered := 0
	for _, scan := range stale {
		pages, err := r.tracker.FailOpenPages(ctx, scan.ID, model.CodeUnknown, InterruptedMessage, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("fail pages of %s: %w", scan.PublicID, err))
			continue
		}
		err = r.tracker.FinishScan(ctx, scan.ID, model.ScanFailed, InterruptedMessage, now)
		if errors.Is(err, tracker.ErrAlreadyTerminal) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("fail scan %s: %w", scan.PublicID, err))
			continue
		}
		recovered++
		r.events.Publish(JobEvent{
			ScanID: scan.PublicID,
			Type:   JobEventStatus,
			Status: model.ScanFailed,
			Error:  InterruptedMessage,
		})
		r.logger.Warn("recovered stale scan",
			logging.F("scan_id", scan.PublicID), logging.F("pages", pages))
	}
	return recovered, errors.Join(errs...)
}

// MaybeSweep sweeps unless a sweep already ran within the recovery interval.
func (r *Recovery) MaybeSweep(ctx context.Context) {
	now := r.clock.Now()
	r.mu.Lock()
	if !r.lastSweep.IsZero() && now.Sub(r.lastSweep) < r.interval {
		r.mu.Unlock()
		return
	}
	r.lastSweep = now
	r.mu.Unlock()

	if _, err := r.Sweep(ctx); err != nil {
		r.logger.Warn("recovery sweep failed", logging.Err(err))
	}
}

// Start schedules MaybeSweep every recovery interval until Stop.
func (r *Recovery) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return
	}
	base := context.WithoutCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(cron.Every(r.interval), cron.FuncJob(func() { r.MaybeSweep(base) }))
	c.Start()
	r.cron = c
	r.logger.Info("recovery scheduled", logging.F("interval", r.interval.String()))
}

// Stop halts scheduling and waits for a running sweep.
func (r *Recovery) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
