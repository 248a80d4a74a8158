package dispatch

import (
	"sort"
	"sync"
	"time"
)

// fakeClock never sleeps: After fires immediately and records the requested
// delay.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	delays []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.delays = append(c.delays, d)
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

func (c *fakeClock) sortedDelays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := append([]time.Duration(nil), c.delays...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// blockingClock never fires, so only context cancellation ends a wait.
type blockingClock struct{ now time.Time }

func (c blockingClock) Now() time.Time                       { return c.now }
func (c blockingClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }
