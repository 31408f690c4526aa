package notes

import (
	"sync"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// FakeClock is a controllable Clock for testing time-dependent behavior.
// Safe for use across goroutines (e.g., test client + HTTP server).
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock frozen at the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// timestampResolution is the precision kept for persisted timestamps.
const timestampResolution = time.Millisecond

// stamp returns the clock's time in UTC at persisted precision.
func stamp(c Clock) time.Time {
	return c.Now().UTC().Truncate(timestampResolution)
}

// nextStamp returns a timestamp strictly after prev, using the clock when it has advanced.
func nextStamp(c Clock, prev time.Time) time.Time {
	now := stamp(c)
	if !now.After(prev) {
		return prev.Add(timestampResolution)
	}
	return now
}
