// Package timer provides the bounded encounter countdown.
package timer

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDuration is the standard encounter length.
const DefaultDuration = 12 * time.Minute

// Countdown ticks down once per interval from a fixed duration and invokes
// the timeout callback exactly once when it reaches zero. Stop cancels the
// countdown and guarantees the callback will not fire afterwards.
// A Countdown is single-use; create a new one per session.
type Countdown struct {
	mu        sync.Mutex
	remaining int // whole seconds-equivalent ticks left
	stopped   bool
	stop      chan struct{}
	once      sync.Once
	onTimeout func()
}

// New starts a countdown of the given number of ticks at 1 tick/second.
func New(ticks int, onTimeout func()) *Countdown {
	return NewWithInterval(ticks, time.Second, onTimeout)
}

// NewWithInterval starts a countdown with a custom tick interval.
// Tests use short intervals.
func NewWithInterval(ticks int, interval time.Duration, onTimeout func()) *Countdown {
	c := &Countdown{
		remaining: ticks,
		stop:      make(chan struct{}),
		onTimeout: onTimeout,
	}
	go c.run(interval)
	return c
}

func (c *Countdown) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.stopped {
				c.mu.Unlock()
				return
			}
			c.remaining--
			done := c.remaining <= 0
			if done {
				c.stopped = true
			}
			c.mu.Unlock()

			if done {
				c.once.Do(c.onTimeout)
				return
			}
		}
	}
}

// Stop cancels the countdown. Idempotent; after Stop returns the timeout
// callback is guaranteed not to fire (unless it already has).
func (c *Countdown) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stop)
	}
	c.mu.Unlock()
}

// Remaining returns the ticks left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining < 0 {
		return 0
	}
	return c.remaining
}

// FormatRemaining renders the remaining time as mm:ss for display surfaces.
func (c *Countdown) FormatRemaining() string {
	r := c.Remaining()
	return fmt.Sprintf("%02d:%02d", r/60, r%60)
}
