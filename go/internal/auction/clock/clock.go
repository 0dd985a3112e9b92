package clock

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrInvalidDuration is returned when arming with a non-positive duration.
	ErrInvalidDuration = errors.New("countdown duration must be positive")
	// ErrNotArmed is returned by Reset when no countdown is running.
	ErrNotArmed = errors.New("countdown is not armed")
)

// Countdown is a single resettable countdown timer. Reset replaces the
// remaining time entirely, regardless of how much has elapsed. Each
// arm/reset bumps a generation counter and a scheduled firing only delivers
// if its generation is still current, so the expiry callback runs at most
// once per lineage: the latest reset always wins against an in-flight
// firing.
//
// The expiry callback runs on the timer goroutine.
type Countdown struct {
	clk      clockwork.Clock
	onExpire func()

	mu       sync.Mutex
	timer    clockwork.Timer
	gen      uint64
	armed    bool
	deadline time.Time
}

// New returns an idle countdown. onExpire must be non-nil.
func New(clk clockwork.Clock, onExpire func()) *Countdown {
	return &Countdown{clk: clk, onExpire: onExpire}
}

// Start arms the countdown. Restarting an already armed countdown replaces
// the pending firing, same as Reset.
func (c *Countdown) Start(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidDuration
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arm(d)
	return nil
}

// Reset replaces the remaining time with d. It fails with ErrNotArmed if
// the countdown already fired or was cancelled; callers treat that as the
// expiry having won the race.
func (c *Countdown) Reset(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidDuration
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return ErrNotArmed
	}
	c.arm(d)
	return nil
}

// Cancel disarms the countdown without firing. No-op when idle.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return
	}
	c.gen++
	c.timer.Stop()
	c.armed = false
}

// Armed reports whether a firing is pending.
func (c *Countdown) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Deadline reports the instant the countdown will expire, zero when idle.
func (c *Countdown) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return time.Time{}
	}
	return c.deadline
}

func (c *Countdown) arm(d time.Duration) {
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.armed = true
	c.deadline = c.clk.Now().Add(d)
	c.timer = c.clk.AfterFunc(d, func() { c.fire(gen) })
}

func (c *Countdown) fire(gen uint64) {
	c.mu.Lock()
	if !c.armed || gen != c.gen {
		// a reset or cancel superseded this firing
		c.mu.Unlock()
		return
	}
	c.armed = false
	c.mu.Unlock()
	c.onExpire()
}
