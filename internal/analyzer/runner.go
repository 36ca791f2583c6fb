package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/logging"
)

// Runner tries the in-page strategies in order, repeats the chain once, and
// finally escalates to the fallback strategy.
type Runner struct {
	inPage   []Strategy
	fallback *Strategy
	retries  int
	backoff  time.Duration
	logger   logging.Logger
}

// NewRunner creates the default chain for engine:
// script-tag, isolated-closure, then dom-snapshot.
//
// Parameters:
//   - engine: loaded axe-core source
//   - logger: Logger instance for structured logging
func NewRunner(engine *Engine, logger logging.Logger) *Runner {
	snapshot := engine.DOMSnapshot()
	return NewRunnerWith([]Strategy{engine.ScriptTag(), engine.IsolatedClosure()}, &snapshot, logger)
}

// NewRunnerWith builds a runner from explicit strategies. fallback may be nil.
func NewRunnerWith(inPage []Strategy, fallback *Strategy, logger logging.Logger) *Runner {
	return &Runner{
		inPage:   inPage,
		fallback: fallback,
		retries:  1,
		backoff:  250 * time.Millisecond,
		logger:   logging.OrNop(logger).With(logging.F("component", "analyzer")),
	}
}

// Run returns the first successful result. When every strategy fails the
// error wraps ErrEngineUnavailable.
func (r *Runner) Run(ctx context.Context, page browser.Page) (*Result, error) {
	var errs []error

	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			page.Sleep(ctx, r.backoff)
		}
		for _, s := range r.inPage {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
			}
			res, err := s.Attempt(ctx, page)
			if err == nil {
				r.logger.Debug("engine run succeeded",
					logging.F("strategy", s.Name),
					logging.F("attempt", attempt+1))
				return res, nil
			}
			r.logger.Debug("engine strategy failed",
				logging.F("strategy", s.Name),
				logging.F("attempt", attempt+1),
				logging.Err(err))
			errs = append(errs, err)
		}
	}

	if r.fallback != nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
		}
		res, err := r.fallback.Attempt(ctx, page)
		if err == nil {
			r.logger.Info("engine ran on fallback", logging.F("strategy", r.fallback.Name))
			return res, nil
		}
		errs = append(errs, err)
	}

	r.logger.Warn("engine unavailable on page", logging.Err(errors.Join(errs...)))
	return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, errors.Join(errs...))
}
