package logging

import (
	"sync"
	"time"
)

// Event is one diagnostic event from a subsystem, kept in memory so a
// caller can inspect recent behavior without scraping process logs.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Subsystem string         `json:"subsystem"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventRing is a fixed-capacity ring of diagnostic events. Appends never
// block and never fail; old events are overwritten.
type EventRing struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

// NewEventRing creates a ring holding up to capacity events.
func NewEventRing(capacity int) *EventRing {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventRing{events: make([]Event, capacity)}
}

// Append records an event and echoes it at debug level.
func (r *EventRing) Append(subsystem, message string, data map[string]any) {
	Debug(subsystem, "%s", message)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = Event{
		Timestamp: time.Now(),
		Subsystem: subsystem,
		Message:   message,
		Data:      data,
	}
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to n events, oldest first.
func (r *EventRing) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []Event
	if r.full {
		ordered = append(ordered, r.events[r.next:]...)
		ordered = append(ordered, r.events[:r.next]...)
	} else {
		ordered = append(ordered, r.events[:r.next]...)
	}
	if n > 0 && len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}
