package testutil

import (
	"sync"
	"time"
)

// TickingClock is a deterministic clock that moves forward by a fixed step
// after every reading, so consecutive writes get distinct, ordered
// timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type TickingClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
	calls int64
}

// NewTickingClock creates a clock whose first reading is start.
func NewTickingClock(start time.Time, step time.Duration) *TickingClock {
	return &TickingClock{start: start, now: start, step: step}
}

// Now returns the current reading and advances the clock by one step.
func (c *TickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	c.calls++
	return t
}

// Peek returns the next reading without advancing.
func (c *TickingClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Calls returns how many times Now has been called.
func (c *TickingClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), the next call to Now() returns start.
func (c *TickingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
	c.calls = 0
}
