package engine

import (
	"sync"

	"goalflow/internal/goal"
)

// eventQueue is a thread-safe FIFO queue of goal events.
//
// The queue is unbounded so reactions that enqueue follow-up events
// (advancement, cascades) never block the loop that drains them.
//
// Thread-safety is provided for external enqueuing (ingest handlers,
// CLI commands) while the Engine's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware
// waiting in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []goal.Event
	closed bool
	signal chan struct{} // buffered size 1, coalesces signals
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]goal.Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e goal.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (goal.Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (goal.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return goal.Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the Event's pointers (Approval, Push) can be
	// collected before the backing array is reallocated.
	q.events[0] = goal.Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
