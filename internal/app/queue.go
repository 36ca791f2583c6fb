package app

import (
	"context"
	"errors"
	"sync"

	"github.com/raysh454/a11yscan/internal/logging"
)

var (
	ErrQueueFull    = errors.New("scan queue is full")
	ErrQueueStopped = errors.New("scan queue is stopped")
)

// ScanRunner executes one scan by public id.
type ScanRunner interface {
	ExecuteScan(ctx context.Context, publicID string) error
}

// JobQueue admits scans for execution. At most ScanConcurrency scans run at
// once and at most QueueCapacity wait behind them; an id that is already
// waiting or running is accepted without being added again.
type JobQueue struct {
	capacity    int
	concurrency int
	runner      ScanRunner
	logger      logging.Logger

	mu      sync.Mutex
	pending []string
	queued  map[string]struct{}
	running map[string]struct{}
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJobQueue(cfg *Config, runner ScanRunner, logger logging.Logger) *JobQueue {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()
	return &JobQueue{
		capacity:    cfg.QueueCapacity,
		concurrency: cfg.ScanConcurrency,
		runner:      runner,
		logger:      logging.OrNop(logger).With(logging.F("component", "queue")),
		queued:      make(map[string]struct{}),
		running:     make(map[string]struct{}),
	}
}

// Start begins dispatching. Jobs admitted before Start wait until it is called.
// Scans run under a context derived from ctx without its cancellation.
func (q *JobQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.started = true
	q.dispatchLocked()
}

// Enqueue admits publicID. It returns ErrQueueFull when the waiting list is
// at capacity and ErrQueueStopped after Stop.
func (q *JobQueue) Enqueue(publicID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}
	if _, ok := q.running[publicID]; ok {
		return nil
	}
	if _, ok := q.queued[publicID]; ok {
		return nil
	}
	if len(q.pending) >= q.capacity {
		q.logger.Warn("rejecting scan, queue full",
			logging.F("scan_id", publicID), logging.F("capacity", q.capacity))
		return ErrQueueFull
	}

	q.pending = append(q.pending, publicID)
	q.queued[publicID] = struct{}{}
	q.dispatchLocked()
	return nil
}

func (q *JobQueue) dispatchLocked() {
	if !q.started || q.stopped {
		return
	}
	for len(q.running) < q.concurrency && len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]
		delete(q.queued, id)
		q.running[id] = struct{}{}

		q.wg.Add(1)
		go q.run(id)
	}
}

func (q *JobQueue) run(publicID string) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		delete(q.running, publicID)
		q.dispatchLocked()
		q.mu.Unlock()
	}()

	q.logger.Debug("scan job started", logging.F("scan_id", publicID))
	if err := q.runner.ExecuteScan(q.ctx, publicID); err != nil {
		q.logger.Error("scan job failed", logging.F("scan_id", publicID), logging.Err(err))
		return
	}
	q.logger.Debug("scan job finished", logging.F("scan_id", publicID))
}

// Stop refuses new work and waits for running scans. If ctx ends first the
// running scans are cancelled and ctx's error is returned. Waiting scans are
// dropped; they stay queued in the store.
func (q *JobQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	dropped := len(q.pending)
	q.pending = nil
	clear(q.queued)
	cancel := q.cancel
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Warn("dropping waiting scans on stop", logging.F("count", dropped))
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
}

// Stats reports how many scans are waiting and running.
func (q *JobQueue) Stats() (waiting, running int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.running)
}
