package core

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock measures elapsed time with the high resolution timer. Elapsed only
// moves when Update is called.
type Clock struct {
	started time.Duration
	running bool
	elapsed time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Now returns the high resolution time in seconds.
func Now() float64 {
	return hrtime.Now().Seconds()
}

// Update samples the timer. It does nothing on a stopped clock.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = hrtime.Since(c.started)
	}
}

// Start resets the elapsed time and starts counting.
func (c *Clock) Start() {
	c.started = hrtime.Now()
	c.running = true
	c.elapsed = 0
}

// Stop keeps the last sampled elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Elapsed returns seconds since Start, as of the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}
