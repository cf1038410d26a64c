package tafuta

import (
	"context"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
)

// IndexEventType identifies a lifecycle event emitted by an Index. Every
// operation emits a start event, then either a success or a failed event.
type IndexEventType string

// Emitted event types.
const (
	EventAddStart      IndexEventType = "add:start"
	EventAddSuccess    IndexEventType = "add:success"
	EventAddFailed     IndexEventType = "add:failed"
	EventCommitStart   IndexEventType = "commit:start"
	EventCommitSuccess IndexEventType = "commit:success"
	EventCommitFailed  IndexEventType = "commit:failed"
	EventDeleteStart   IndexEventType = "delete:start"
	EventDeleteSuccess IndexEventType = "delete:success"
	EventDeleteFailed  IndexEventType = "delete:failed"
	EventSearchStart   IndexEventType = "search:start"
	EventSearchSuccess IndexEventType = "search:success"
	EventSearchFailed  IndexEventType = "search:failed"
	EventClearStart    IndexEventType = "clear:start"
	EventClearSuccess  IndexEventType = "clear:success"
	EventClearFailed   IndexEventType = "clear:failed"
)

// IndexEvent describes one operation lifecycle notification.
type IndexEvent struct {
	Type      IndexEventType `json:"type"`
	Operation string         `json:"operation"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
	Error     *string        `json:"error,omitempty"`
	Duration  *int64         `json:"duration,omitempty"` // milliseconds, on success/failure
	Documents *int           `json:"documents,omitempty"`
}

// EventCallback receives emitted index events.
type EventCallback func(ctx context.Context, event IndexEvent) error

// subscriptionRegistry tracks active event subscriptions by id.
type subscriptionRegistry struct {
	bus *events.TypedEventBus[IndexEvent]
	mu  sync.Mutex
	sub map[string]func()
}

func newSubscriptionRegistry() (*subscriptionRegistry, error) {
	bus, err := events.NewTypedEventBus[IndexEvent](events.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &subscriptionRegistry{bus: bus, sub: make(map[string]func())}, nil
}

func (r *subscriptionRegistry) subscribe(event IndexEventType, cb EventCallback) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	unsubscribe := r.bus.Subscribe(string(event), cb)
	id := uuid.New().String()
	r.sub[id] = unsubscribe
	return id
}

func (r *subscriptionRegistry) unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.sub[id]; ok {
		cancel()
		delete(r.sub, id)
	}
}

func (r *subscriptionRegistry) emit(event IndexEvent) {
	if r == nil || r.bus == nil {
		return
	}
	r.bus.Emit(string(event.Type), event)
}

// withEvents brackets an operation with start and success/failure events.
func (r *subscriptionRegistry) withEvents(op string, start, success, failed IndexEventType, docs *int, fn func() error) error {
	begin := time.Now()
	r.emit(IndexEvent{
		Type:      start,
		Operation: op,
		Timestamp: begin.UnixMilli(),
	})

	err := fn()
	elapsed := time.Since(begin).Milliseconds()

	if err != nil {
		msg := err.Error()
		r.emit(IndexEvent{
			Type:      failed,
			Operation: op,
			Timestamp: time.Now().UnixMilli(),
			Error:     &msg,
			Duration:  &elapsed,
			Documents: docs,
		})
		return err
	}

	r.emit(IndexEvent{
		Type:      success,
		Operation: op,
		Timestamp: time.Now().UnixMilli(),
		Duration:  &elapsed,
		Documents: docs,
	})
	return nil
}
