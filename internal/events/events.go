// Package events provides a small in-process publish/subscribe bus used to
// notify presentation code about session and job changes.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/suqaba/suqaba-cli/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventSessionChanged  EventType = "session_changed"
	EventJobStatus       EventType = "job_status"
	EventJobAnomaly      EventType = "job_anomaly"
	EventSubmitDiscarded EventType = "submit_discarded"
	EventError           EventType = "error"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// SessionChangedEvent is published whenever the active session is replaced or cleared.
// UserID is empty when the client is now unauthenticated.
type SessionChangedEvent struct {
	BaseEvent
	UserID string
	Email  string
	Reason string // "login", "register", "restore", "refresh", "logout", "unauthorized"
}

// JobStatusEvent reports an observed status change for a simulation.
type JobStatusEvent struct {
	BaseEvent
	JobID     string
	Name      string
	OldStatus string
	NewStatus string
}

// JobAnomalyEvent reports a server snapshot that was accepted but looked wrong:
// a transition outside the lifecycle graph, or a changed completion result.
type JobAnomalyEvent struct {
	BaseEvent
	JobID  string
	From   string
	To     string
	Detail string
}

// SubmitDiscardedEvent reports a submission response that arrived after the
// wizard had moved on, so its result was not applied.
type SubmitDiscardedEvent struct {
	BaseEvent
	JobID  string
	Reason string
}

// ErrorEvent represents a background failure that was not surfaced to a caller.
type ErrorEvent struct {
	BaseEvent
	Source string
	JobID  string
	Error  error
}

// EventBus manages event subscriptions and publishing.
// A nil *EventBus is valid and discards everything.
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events are dropped for subscribers whose buffer is full.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	if eb == nil {
		return
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishSessionChanged is a convenience method for session change events
func (eb *EventBus) PublishSessionChanged(userID, email, reason string) {
	eb.Publish(&SessionChangedEvent{
		BaseEvent: newBase(EventSessionChanged),
		UserID:    userID,
		Email:     email,
		Reason:    reason,
	})
}

// PublishJobStatus is a convenience method for job status events
func (eb *EventBus) PublishJobStatus(jobID, name, oldStatus, newStatus string) {
	eb.Publish(&JobStatusEvent{
		BaseEvent: newBase(EventJobStatus),
		JobID:     jobID,
		Name:      name,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
}

// PublishJobAnomaly is a convenience method for job anomaly events
func (eb *EventBus) PublishJobAnomaly(jobID, from, to, detail string) {
	eb.Publish(&JobAnomalyEvent{
		BaseEvent: newBase(EventJobAnomaly),
		JobID:     jobID,
		From:      from,
		To:        to,
		Detail:    detail,
	})
}

// PublishSubmitDiscarded is a convenience method for discarded submissions
func (eb *EventBus) PublishSubmitDiscarded(jobID, reason string) {
	eb.Publish(&SubmitDiscardedEvent{
		BaseEvent: newBase(EventSubmitDiscarded),
		JobID:     jobID,
		Reason:    reason,
	})
}

// PublishError is a convenience method for background errors
func (eb *EventBus) PublishError(source, jobID string, err error) {
	eb.Publish(&ErrorEvent{
		BaseEvent: newBase(EventError),
		Source:    source,
		JobID:     jobID,
		Error:     err,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from every event type
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
