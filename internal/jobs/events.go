package jobs

import (
	"slices"
	"sort"
	"sync"
	"time"

	"quicknote/internal/domain"
)

// EventType classifies messages emitted during a submission.
type EventType string

const (
	EventTypeStatus EventType = "status"
	EventTypeLog    EventType = "log"
	EventTypeResult EventType = "result"
	EventTypeError  EventType = "error"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	JobID     string           `json:"jobId"`
	Type      EventType        `json:"type"`
	Status    domain.JobStatus `json:"status,omitempty"`
	Kind      domain.ErrorKind `json:"kind,omitempty"`
	Message   string           `json:"message,omitempty"`
	File      string           `json:"file,omitempty"`
	Segments  int              `json:"segments,omitempty"`
	HTTPCode  int              `json:"httpCode,omitempty"`
}

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	listeners []func(Event)
}

// NewEventBus creates a bus that retains the newest maxEvents events.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &EventBus{maxEvents: maxEvents, events: make([]Event, 0, maxEvents)}
}

// Subscribe registers fn to receive every published event after sequencing.
func (b *EventBus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Publish sequences event, keeps the newest maxEvents, and notifies listeners
// outside the lock.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if len(b.events) == b.maxEvents {
		copy(b.events, b.events[1:])
		b.events = b.events[:len(b.events)-1]
	}
	b.events = append(b.events, event)
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
	return event
}

// Since returns retained events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Sequences are strictly increasing, so the buffer is sorted.
	i := sort.Search(len(b.events), func(i int) bool { return b.events[i].Seq > seq })
	if i == len(b.events) {
		return nil
	}
	return append([]Event(nil), b.events[i:]...)
}
