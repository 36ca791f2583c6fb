package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/utils"
)

// InMemoryTracker keeps everything in process memory. Returned values are
// copies; callers may mutate them freely.
type InMemoryTracker struct {
	mu     sync.RWMutex
	logger logging.Logger

	nextID   int64
	scans    map[int64]*model.Scan
	byPublic map[string]int64
	pages    map[int64]*model.Page
	// scanPages holds page ids in ordinal order.
	scanPages map[int64][]int64
	issues    map[int64][]model.Issue
}

var _ Tracker = (*InMemoryTracker)(nil)

func NewInMemoryTracker(logger logging.Logger) *InMemoryTracker {
	return &InMemoryTracker{
		logger:    logging.OrNop(logger).With(logging.F("component", "tracker")),
		scans:     map[int64]*model.Scan{},
		byPublic:  map[string]int64{},
		pages:     map[int64]*model.Page{},
		scanPages: map[int64][]int64{},
		issues:    map[int64][]model.Issue{},
	}
}

func (t *InMemoryTracker) id() int64 {
	t.nextID++
	return t.nextID
}

func (t *InMemoryTracker) CreateScan(_ context.Context, scan *model.Scan) error {
	if scan == nil {
		return errors.New("scan cannot be nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.byPublic[scan.PublicID]; dup {
		return fmt.Errorf("insert scan: duplicate public id %s", scan.PublicID)
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	if scan.Status == "" {
		scan.Status = model.ScanQueued
	}
	scan.ID = t.id()
	cp := *scan
	t.scans[scan.ID] = &cp
	t.byPublic[scan.PublicID] = scan.ID
	return nil
}

func (t *InMemoryTracker) GetScan(_ context.Context, publicID string) (*model.Scan, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byPublic[publicID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, publicID)
	}
	cp := *t.scans[id]
	return &cp, nil
}

func (t *InMemoryTracker) GetScanByID(_ context.Context, id int64) (*model.Scan, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.scans[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrScanNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (t *InMemoryTracker) openScan(id int64) (*model.Scan, error) {
	s, ok := t.scans[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrScanNotFound, id)
	}
	if s.Status.Terminal() {
		return nil, fmt.Errorf("scan %d: %w", id, ErrAlreadyTerminal)
	}
	return s, nil
}

func (t *InMemoryTracker) MarkScanRunning(_ context.Context, scanID int64, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.openScan(scanID)
	if err != nil {
		return err
	}
	s.Status = model.ScanRunning
	s.StartedAt = model.Ptr(at.UTC())
	s.ErrorMessage = ""
	return nil
}

func (t *InMemoryTracker) FinishScan(_ context.Context, scanID int64, status model.ScanStatus, message string, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("finish scan: %q is not terminal", status)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.openScan(scanID)
	if err != nil {
		return err
	}
	s.Status = status
	s.ErrorMessage = message
	s.FinishedAt = model.Ptr(at.UTC())
	return nil
}

func (t *InMemoryTracker) ListStaleScans(_ context.Context, before time.Time) ([]model.Scan, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []model.Scan
	for _, s := range t.scans {
		if s.Status == model.ScanRunning && s.FinishedAt == nil && s.StartedAt != nil && s.StartedAt.Before(before) {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b model.Scan) int { return int(a.ID - b.ID) })
	return out, nil
}

func (t *InMemoryTracker) CreatePages(_ context.Context, scanID int64, urls []string, at time.Time) ([]model.Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.scans[scanID]; !ok {
		return nil, fmt.Errorf("%w: id %d", ErrScanNotFound, scanID)
	}

	base := len(t.scanPages[scanID])
	out := make([]model.Page, 0, len(urls))
	for i, u := range urls {
		p := &model.Page{
			ID:            t.id(),
			ScanID:        scanID,
			URL:           u,
			NormalizedURL: normalizedOrSelf(utils.Normalize, u),
			OrderIndex:    base + i,
			Status:        model.PageQueued,
			CreatedAt:     at.UTC(),
		}
		t.pages[p.ID] = p
		t.scanPages[scanID] = append(t.scanPages[scanID], p.ID)
		out = append(out, *p)
	}
	return out, nil
}

func (t *InMemoryTracker) ListPages(_ context.Context, scanID int64) ([]model.Page, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.scanPages[scanID]
	out := make([]model.Page, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.pages[id])
	}
	return out, nil
}

func (t *InMemoryTracker) MarkPageRunning(_ context.Context, pageID int64, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[pageID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
	}
	if p.Status != model.PageQueued {
		return fmt.Errorf("page %d: %w", pageID, ErrAlreadyTerminal)
	}
	p.Status = model.PageRunning
	p.StartedAt = model.Ptr(at.UTC())
	return nil
}

func (t *InMemoryTracker) FinishPage(_ context.Context, o model.PageOutcome, at time.Time) error {
	if !o.Status.Terminal() {
		return fmt.Errorf("finish page: %q is not terminal", o.Status)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[o.PageID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrPageNotFound, o.PageID)
	}
	if p.Status.Terminal() {
		return fmt.Errorf("page %d: %w", o.PageID, ErrAlreadyTerminal)
	}
	p.Status = o.Status
	p.HTTPStatus = o.HTTPStatus
	p.ErrorCode = o.ErrorCode
	p.ErrorMessage = o.ErrorMessage
	p.FinishedAt = model.Ptr(at.UTC())
	return nil
}

func (t *InMemoryTracker) FailOpenPages(_ context.Context, scanID int64, code, message string, at time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, id := range t.scanPages[scanID] {
		p := t.pages[id]
		if p.Status != model.PageQueued && p.Status != model.PageRunning {
			continue
		}
		p.Status = model.PageFailed
		p.ErrorCode = code
		p.ErrorMessage = message
		p.FinishedAt = model.Ptr(at.UTC())
		n++
	}
	return n, nil
}

func (t *InMemoryTracker) InsertIssues(_ context.Context, pageID int64, issues []model.Issue, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pages[pageID]; !ok {
		return fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
	}
	for _, i := range issues {
		i.ID = t.id()
		i.PageID = pageID
		i.CreatedAt = at.UTC()
		i.Tags = slices.Clone(i.Tags)
		i.Nodes = slices.Clone(i.Nodes)
		if i.Tags == nil {
			i.Tags = []string{}
		}
		if i.Nodes == nil {
			i.Nodes = []model.NodeDescriptor{}
		}
		t.issues[pageID] = append(t.issues[pageID], i)
	}
	return nil
}

func (t *InMemoryTracker) ListIssues(_ context.Context, pageID int64) ([]model.Issue, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.issues[pageID]), nil
}

func (t *InMemoryTracker) ListScanIssues(_ context.Context, scanID int64) ([]model.Issue, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []model.Issue
	for _, id := range t.scanPages[scanID] {
		out = append(out, t.issues[id]...)
	}
	return out, nil
}

func (t *InMemoryTracker) Close() error { return nil }
