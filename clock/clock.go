package clock

import (
	"sync"
	"time"
)

// Clock abstracts time so that round clocks and settlement windows can be
// driven deterministically in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d and returns a handle that can
	// cancel it.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped the
	// timer before it fired.
	Stop() bool
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// New returns a Clock backed by the runtime timers.
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{time.NewTicker(d)}
}

type realTimer struct {
	t *time.Timer
}

func (t realTimer) Stop() bool { return t.t.Stop() }

type realTicker struct {
	t *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.t.C }
func (t *realTicker) Stop()               { t.t.Stop() }

// Fake is a manually advanced Clock for tests. Callbacks fire
// synchronously from Advance, in schedule order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeTimer
	tickers []*fakeTicker
	seq     int
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f at now+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{
		clock: c,
		when:  c.now.Add(d),
		seq:   c.seq,
		f:     f,
	}
	c.seq++
	c.waiters = append(c.waiters, t)
	return t
}

// NewTicker returns a ticker advanced by Advance. Ticks are delivered
// best-effort on a buffered channel.
func (c *Fake) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		clock: c,
		every: d,
		next:  c.now.Add(d),
		c:     make(chan time.Time, 64),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the fake time forward by d, firing due timers and tickers
// in chronological order before returning.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.popDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// popDue removes and returns the earliest timer due at or before target,
// firing any ticker ticks that precede it. Returns nil when nothing is due.
func (c *Fake) popDue(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var earliest *fakeTimer
	idx := -1
	for i, t := range c.waiters {
		if t.when.After(target) {
			continue
		}
		if earliest == nil || t.when.Before(earliest.when) ||
			(t.when.Equal(earliest.when) && t.seq < earliest.seq) {
			earliest = t
			idx = i
		}
	}

	until := target
	if earliest != nil {
		until = earliest.when
	}
	for _, tk := range c.tickers {
		for !tk.next.After(until) {
			select {
			case tk.c <- tk.next:
			default:
			}
			tk.next = tk.next.Add(tk.every)
		}
	}

	if earliest == nil {
		return nil
	}
	c.now = earliest.when
	c.waiters = append(c.waiters[:idx], c.waiters[idx+1:]...)
	return earliest
}

type fakeTimer struct {
	clock *Fake
	when  time.Time
	seq   int
	f     func()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	for i, w := range t.clock.waiters {
		if w == t {
			t.clock.waiters = append(t.clock.waiters[:i], t.clock.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTicker struct {
	clock *Fake
	every time.Duration
	next  time.Time
	c     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	for i, tk := range t.clock.tickers {
		if tk == t {
			t.clock.tickers = append(t.clock.tickers[:i], t.clock.tickers[i+1:]...)
			return
		}
	}
}
