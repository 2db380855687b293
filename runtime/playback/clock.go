package playback

import (
	"sync"
	"time"
)

// Clock reports the output device's current time in seconds.
type Clock interface {
	Now() float64
}

// WallClock measures seconds elapsed since it was created.
type WallClock struct {
	start time.Time
}

// NewWallClock returns a clock starting at zero now.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Now implements Clock.
func (c *WallClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// ManualClock is a Clock moved explicitly by tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

// Now implements Clock.
func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t seconds.
func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d.Seconds()
	c.mu.Unlock()
}
