package session

import (
	"sync"

	"github.com/slate-hq/slate/internal/op"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeRemote is an operation received from another replica.
	EventTypeRemote EventType = iota + 1
	// EventTypeLocal is a draft issued by this session's user.
	EventTypeLocal
	// EventTypeAck acknowledges that every replica has folded a locally
	// issued operation; it leaves the pending buffer.
	EventTypeAck
)

// Event wraps remote operations, local drafts, and acknowledgements for
// the session queue.
type Event struct {
	Type   EventType
	Remote *op.Operation
	Local  *LocalDraft
	AckID  string
}

// eventQueue is a thread-safe FIFO queue for session events.
//
// The queue is unbounded so a burst of remote deliveries never blocks
// the transport goroutine feeding it.
//
// Thread-safety exists for external enqueuing (transport handlers, CLI
// drivers) while the session's Run loop dequeues. The queue uses a
// buffered signal channel so the Run loop can wait with context
// cancellation in the same select.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1; coalesces wakeups
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
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
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain the event's
	// pointers until reallocation.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select alongside ctx.Done().
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
