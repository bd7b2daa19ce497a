package testutil

import (
	"sync"
	"time"
)

// SteppingClock is a millisecond clock that advances only when told to.
//
// Unlike engine.FixedClock, SteppingClock can be reset for test reuse,
// so the same scenario can run multiple times with identical
// timestamps.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type SteppingClock struct {
	mu    sync.Mutex
	start int64
	ts    int64
}

// NewSteppingClock creates a clock frozen at start (epoch millis).
func NewSteppingClock(start int64) *SteppingClock {
	return &SteppingClock{start: start, ts: start}
}

// Now returns the current instant.
func (c *SteppingClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}

// Step advances the clock by d and returns the new instant.
func (c *SteppingClock) Step(d time.Duration) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts += d.Milliseconds()
	return c.ts
}

// Reset rewinds the clock to its start instant.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts = c.start
}
