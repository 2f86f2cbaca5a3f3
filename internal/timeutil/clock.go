// Package timeutil lets stores take their timestamps and retry pauses from
// a clock that tests can drive by hand.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the time source for record timestamps and retry backoff.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// MockClock only moves when told to. Sleep returns at once after logging the
// requested pause and moving the clock forward by it.
type MockClock struct {
	mu     sync.Mutex
	t      time.Time
	paused []time.Duration
}

// NewMockClock starts a MockClock at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{t: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *MockClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.paused = append(c.paused, d)
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Sleeps returns a copy of every duration passed to Sleep, in call order.
func (c *MockClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.paused...)
}
