package capture

import (
	"fmt"
	"sync"

	"github.com/roman-kulish/radar-pulse/internal/dfs"
)

// node represents an internal linked list node for the event buffer.
type node struct {
	event *dfs.PulseEvent
	next  *node
}

// EventBuffer implements a thread-safe buffer keeping pulse events ordered by
// their radio TSF timestamp. Reports from the relay may arrive slightly out of
// order; the buffer holds events until enough have accumulated to flush the
// oldest ones in order.
type EventBuffer struct {
	capacity   int // Maximum number of events to store
	flushCount int // Number of events to remove when buffer reaches capacity

	mu   sync.Mutex
	head *node
	size int
}

// NewEventBuffer creates a new event buffer.
// The buffer will store up to capacity events and remove flushCount events when full.
//
// Returns an error if parameters are invalid.
func NewEventBuffer(capacity, flushCount int) (*EventBuffer, error) {
	if capacity <= 0 || flushCount <= 0 || flushCount > capacity {
		return nil, fmt.Errorf("invalid buffer parameters: bufferCap=%d, toFlush=%d", capacity, flushCount)
	}
	return &EventBuffer{
		capacity:   capacity,
		flushCount: flushCount,
	}, nil
}

// Insert adds a new event to the buffer in the correct order. Events with
// equal TSF keep their insertion order. Returns an error if the event is nil.
func (eb *EventBuffer) Insert(event *dfs.PulseEvent) error {
	if event == nil {
		return fmt.Errorf("cannot insert nil event")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	n := &node{event: event}
	eb.size++

	if eb.head == nil || compareEvents(event, eb.head.event) < 0 {
		n.next = eb.head
		eb.head = n
		return nil
	}

	// Find insertion point
	current := eb.head
	for current.next != nil && compareEvents(current.next.event, event) <= 0 {
		current = current.next
	}

	n.next = current.next
	current.next = n
	return nil
}

// IsFull returns true if the buffer has reached its capacity.
func (eb *EventBuffer) IsFull() bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	return eb.size >= eb.capacity
}

// Flush removes and returns the oldest events from the buffer.
// Returns nil if the buffer is empty. The number of events returned
// is determined by the flushCount parameter and buffer state.
func (eb *EventBuffer) Flush() []*dfs.PulseEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.head == nil || eb.size == 0 {
		return nil
	}

	count := eb.flushCount
	if eb.size > eb.capacity {
		count += eb.size - eb.capacity
	}
	count = min(count, eb.size) // Ensure we don't exceed available items

	results := make([]*dfs.PulseEvent, 0, count)
	current := eb.head
	for i := 0; i < count && current != nil; i++ {
		results = append(results, current.event)
		current = current.next
	}

	eb.head = current
	eb.size -= len(results)
	return results
}

// DrainAll removes and returns all events from the buffer.
// Returns nil if the buffer is empty.
func (eb *EventBuffer) DrainAll() []*dfs.PulseEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.head == nil || eb.size == 0 {
		return nil
	}

	results := make([]*dfs.PulseEvent, 0, eb.size)
	for current := eb.head; current != nil; current = current.next {
		results = append(results, current.event)
	}

	eb.head = nil
	eb.size = 0
	return results
}

// Size returns the current number of events in the buffer.
func (eb *EventBuffer) Size() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return eb.size
}

// Clear removes all events from the buffer.
func (eb *EventBuffer) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.head = nil
	eb.size = 0
}

// compareEvents orders events by TSF, then by host timestamp.
// Returns:
//
//	1 if 'a' belongs after 'b'
//	-1 if 'a' belongs before 'b'
//	0 if they are equivalent
func compareEvents(a, b *dfs.PulseEvent) int {
	switch {
	case a.TSF > b.TSF:
		return 1
	case a.TSF < b.TSF:
		return -1
	}
	return a.Timestamp.Compare(b.Timestamp)
}
