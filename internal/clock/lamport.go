package clock

import "sync/atomic"

// Lamport is a monotonic scalar logical clock.
//
// Every operation a replica issues is stamped with Next(). When a replica
// observes a remote operation it calls Observe() with the remote stamp so
// its own clock never falls behind anything it has seen. The stamp is used
// strictly as a tie-break between causally-concurrent operations - never
// as a causality test, and never replaced by wall-clock time.
//
// Thread-safety: Lamport is safe for concurrent use (atomic operations),
// though the session's single-writer design means one goroutine typically
// drives it.
type Lamport struct {
	v atomic.Int64
}

// NewLamport creates a Lamport clock starting at zero.
func NewLamport() *Lamport {
	return &Lamport{}
}

// NewLamportAt creates a Lamport clock resuming from a known value.
// Used by replay to continue from the last persisted stamp.
func NewLamportAt(start int64) *Lamport {
	l := &Lamport{}
	l.v.Store(start)
	return l
}

// Next advances the clock and returns the new stamp.
// Each call returns a unique, strictly increasing value.
func (l *Lamport) Next() int64 {
	return l.v.Add(1)
}

// Observe raises the clock to at least the observed remote stamp.
// Calling Observe with a stamp at or below the current value is a no-op.
func (l *Lamport) Observe(remote int64) {
	for {
		cur := l.v.Load()
		if remote <= cur {
			return
		}
		if l.v.CompareAndSwap(cur, remote) {
			return
		}
	}
}

// Current returns the clock's value without advancing it.
func (l *Lamport) Current() int64 {
	return l.v.Load()
}
