package testutil

import (
	"sync"
	"time"
)

// DeterministicNow is a thread-safe fake wall clock for tests.
//
// Each call to Now advances the clock by a fixed step, so timestamps in
// a scenario are reproducible and golden traces are byte-identical
// across runs.
type DeterministicNow struct {
	mu   sync.Mutex
	cur  time.Time
	step time.Duration
}

// NewDeterministicNow creates a clock starting at start, advancing by
// step per observation. A zero step freezes the clock.
func NewDeterministicNow(start time.Time, step time.Duration) *DeterministicNow {
	return &DeterministicNow{cur: start, step: step}
}

// Now returns the current fake time and advances by the step.
func (c *DeterministicNow) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.cur
	c.cur = c.cur.Add(c.step)
	return t
}

// Advance moves the clock forward by d without counting as an
// observation.
func (c *DeterministicNow) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

// Reset rewinds the clock to start for test reuse.
func (c *DeterministicNow) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = start
}
