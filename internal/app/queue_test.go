package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raysh454/a11yscan/internal/testutil"
)

// gatedRunner blocks every scan until its gate is released.
type gatedRunner struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	calls   map[string]int
	started chan string
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{
		gates:   make(map[string]chan struct{}),
		calls:   make(map[string]int),
		started: make(chan string, 32),
	}
}

func (r *gatedRunner) gate(id string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[id]
	if !ok {
		g = make(chan struct{})
		r.gates[id] = g
	}
	return g
}

func (r *gatedRunner) release(id string) { close(r.gate(id)) }

func (r *gatedRunner) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func (r *gatedRunner) ExecuteScan(ctx context.Context, publicID string) error {
	r.mu.Lock()
	r.calls[publicID]++
	r.mu.Unlock()
	r.started <- publicID
	select {
	case <-r.gate(publicID):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitStarted(t *testing.T, r *gatedRunner, want string) {
	t.Helper()
	select {
	case got := <-r.started:
		if got != want {
			t.Fatalf("started %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q to start", want)
	}
}

func assertNotStarted(t *testing.T, r *gatedRunner) {
	t.Helper()
	select {
	case got := <-r.started:
		t.Fatalf("unexpected start of %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestQueue(t *testing.T, capacity, concurrency int) (*JobQueue, *gatedRunner) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.QueueCapacity = capacity
	cfg.ScanConcurrency = concurrency
	r := newGatedRunner()
	q := NewJobQueue(cfg, r, &testutil.DummyLogger{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q, r
}

func TestJobQueue_DedupesQueuedAndRunning(t *testing.T) {
	t.Parallel()

	q, r := newTestQueue(t, 4, 1)
	q.Start(context.Background())

	if err := q.Enqueue("scan_a"); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	waitStarted(t, r, "scan_a")
	if err := q.Enqueue("scan_a"); err != nil {
		t.Fatalf("re-enqueue running a: %v", err)
	}

	if err := q.Enqueue("scan_b"); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}
	if err := q.Enqueue("scan_b"); err != nil {
		t.Fatalf("re-enqueue queued b: %v", err)
	}
	if waiting, running := q.Stats(); waiting != 1 || running != 1 {
		t.Fatalf("stats = %d waiting, %d running; want 1, 1", waiting, running)
	}

	r.release("scan_a")
	waitStarted(t, r, "scan_b")
	r.release("scan_b")
	assertNotStarted(t, r)

	if n := r.count("scan_a"); n != 1 {
		t.Errorf("scan_a ran %d times", n)
	}
	if n := r.count("scan_b"); n != 1 {
		t.Errorf("scan_b ran %d times", n)
	}
}

func TestJobQueue_RejectsWhenFull(t *testing.T) {
	t.Parallel()

	q, r := newTestQueue(t, 1, 1)
	q.Start(context.Background())

	if err := q.Enqueue("scan_a"); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	waitStarted(t, r, "scan_a")
	if err := q.Enqueue("scan_b"); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}
	if err := q.Enqueue("scan_c"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("enqueue c: got %v, want ErrQueueFull", err)
	}

	// Completion frees a slot and admits the waiting job.
	r.release("scan_a")
	waitStarted(t, r, "scan_b")
	if err := q.Enqueue("scan_c"); err != nil {
		t.Fatalf("enqueue c after drain: %v", err)
	}
	r.release("scan_b")
	waitStarted(t, r, "scan_c")
	r.release("scan_c")
}

func TestJobQueue_RespectsConcurrencyCap(t *testing.T) {
	t.Parallel()

	q, r := newTestQueue(t, 10, 2)
	q.Start(context.Background())

	for _, id := range []string{"scan_1", "scan_2", "scan_3"} {
		if err := q.Enqueue(id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	waitStarted(t, r, "scan_1")
	waitStarted(t, r, "scan_2")
	assertNotStarted(t, r)

	r.release("scan_2")
	waitStarted(t, r, "scan_3")
	r.release("scan_1")
	r.release("scan_3")
}

func TestJobQueue_HoldsJobsUntilStart(t *testing.T) {
	t.Parallel()

	q, r := newTestQueue(t, 4, 1)
	if err := q.Enqueue("scan_early"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	assertNotStarted(t, r)

	q.Start(context.Background())
	waitStarted(t, r, "scan_early")
	r.release("scan_early")
}

func TestJobQueue_StopRefusesNewWork(t *testing.T) {
	t.Parallel()

	q, r := newTestQueue(t, 4, 1)
	q.Start(context.Background())
	if err := q.Enqueue("scan_a"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitStarted(t, r, "scan_a")

	done := make(chan error, 1)
	go func() { done <- q.Stop(context.Background()) }()

	// Stop waits for the running scan.
	select {
	case err := <-done:
		t.Fatalf("Stop returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	r.release("scan_a")
	if err := <-done; err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := q.Enqueue("scan_b"); !errors.Is(err, ErrQueueStopped) {
		t.Fatalf("enqueue after stop: got %v, want ErrQueueStopped", err)
	}
}

func TestJobQueue_StopDeadlineCancelsRunning(t *testing.T) {
	t.Parallel()

	q, r := newTestQueue(t, 4, 1)
	q.Start(context.Background())
	if err := q.Enqueue("scan_stuck"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitStarted(t, r, "scan_stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop: got %v, want deadline exceeded", err)
	}
}

// ─── EventBus ──────────────────────────────────────────────────────────

func TestEventBus_DropsForSlowSubscriberAndClosesOnTerminal(t *testing.T) {
	t.Parallel()

	bus := NewEventBus(&testutil.DummyLogger{})
	ch, cancel := bus.Subscribe("scan_x")
	defer cancel()

	for i := 0; i < 40; i++ {
		bus.Publish(JobEvent{ScanID: "scan_x", Type: JobEventProgress, Processed: i, Total: 40})
	}
	bus.Publish(JobEvent{ScanID: "scan_other", Type: JobEventProgress})

	n := 0
	for range ch {
		n++
		if n == 16 {
			break
		}
	}
	if n != 16 {
		t.Fatalf("received %d buffered events, want 16", n)
	}

	bus.Publish(JobEvent{ScanID: "scan_x", Type: JobEventStatus, Status: "completed"})
	ev, ok := <-ch
	if !ok || ev.Status != "completed" {
		t.Fatalf("want terminal event before close, got %+v ok=%v", ev, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after terminal event")
	}
	if got := bus.Subscribers("scan_x"); got != 0 {
		t.Fatalf("subscribers = %d, want 0", got)
	}
	cancel()
}
