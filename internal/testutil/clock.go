package testutil

import (
	"slices"
	"sync"
	"time"

	"github.com/turbocompute/gpulogs/internal/stream"
)

// FakeClock is a manual stream.Clock. Timers fire only when Advance moves the
// clock past their deadline, on the goroutine calling Advance.
type FakeClock struct {
	mu        sync.Mutex
	now       time.Time
	seq       int
	timers    []*fakeTimer
	scheduled []time.Duration
}

type fakeTimer struct {
	clock   *FakeClock
	when    time.Time
	seq     int
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc arms a timer firing f once the clock has advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) stream.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{
		clock: c,
		when:  c.now.Add(d),
		seq:   c.seq,
		delay: d,
		f:     f,
	}
	c.timers = append(c.timers, t)
	c.scheduled = append(c.scheduled, d)
	return t
}

// Stop disarms the timer, reporting whether it was still pending.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and runs every timer that became due, in
// deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped || t.fired:
		case !t.when.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	slices.SortFunc(due, func(a, b *fakeTimer) int {
		if cmp := a.when.Compare(b.when); cmp != 0 {
			return cmp
		}
		return a.seq - b.seq
	})
	for _, t := range due {
		t.f()
	}
}

// Pending returns the delays of the timers still armed, oldest first.
func (c *FakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.delay)
		}
	}
	return out
}

// Scheduled returns the delay of every AfterFunc call so far.
func (c *FakeClock) Scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.scheduled)
}
