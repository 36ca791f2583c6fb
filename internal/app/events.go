package app

import (
	"sync"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
)

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
)

type JobEvent struct {
	ScanID string       `json:"scanId"`
	Type   JobEventType `json:"type"`

	// For status changes
	Status model.ScanStatus `json:"status,omitempty"`
	Error  string           `json:"error,omitempty"`

	// For progress
	Processed int `json:"processed,omitempty"`
	Total     int `json:"total,omitempty"`
}

// EventBus fans scan events out to subscribers. Sends never block: a
// subscriber that falls behind loses events. Channels for a scan are closed
// once a terminal status event for it has been published.
type EventBus struct {
	mu     sync.Mutex
	subs   map[string]map[chan JobEvent]struct{}
	buffer int
	logger logging.Logger
}

func NewEventBus(logger logging.Logger) *EventBus {
	return &EventBus{
		subs:   make(map[string]map[chan JobEvent]struct{}),
		buffer: 16,
		logger: logging.OrNop(logger).With(logging.F("component", "events")),
	}
}

// Subscribe returns a channel of events for scanID and a func that cancels
// the subscription. The cancel func is safe to call more than once.
func (b *EventBus) Subscribe(scanID string) (<-chan JobEvent, func()) {
	ch := make(chan JobEvent, b.buffer)
	b.mu.Lock()
	if b.subs[scanID] == nil {
		b.subs[scanID] = make(map[chan JobEvent]struct{})
	}
	b.subs[scanID][ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[scanID][ch]; ok {
			delete(b.subs[scanID], ch)
			close(ch)
			if len(b.subs[scanID]) == 0 {
				delete(b.subs, scanID)
			}
		}
	}
}

// Publish delivers ev to current subscribers of ev.ScanID. A nil bus is a no-op.
func (b *EventBus) Publish(ev JobEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[ev.ScanID] {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropping event for slow subscriber",
				logging.F("scan_id", ev.ScanID), logging.F("type", string(ev.Type)))
		}
	}

	if ev.Type == JobEventStatus && ev.Status.Terminal() {
		for ch := range b.subs[ev.ScanID] {
			close(ch)
		}
		delete(b.subs, ev.ScanID)
	}
}

// Subscribers returns the number of open subscriptions for scanID.
func (b *EventBus) Subscribers(scanID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[scanID])
}
