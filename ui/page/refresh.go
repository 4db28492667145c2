package page

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRefreshInterval is the polling interval of auto-refreshing pages.
const DefaultRefreshInterval = 30 * time.Second

// Clock creates tickers. Pages take a Clock so tests can drive refresh
// deterministically.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker a RefreshTimer needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock returns a Clock backed by package time.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }

// RefreshTimer calls fn on a fixed interval until stopped.
type RefreshTimer struct {
	clock    Clock
	interval time.Duration
	fn       func(ctx context.Context)

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewRefreshTimer creates a stopped timer.
func NewRefreshTimer(clock Clock, interval time.Duration, fn func(ctx context.Context)) *RefreshTimer {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshTimer{
		clock:    clock,
		interval: interval,
		fn:       fn,
	}
}

// Start begins ticking. It returns immediately.
func (t *RefreshTimer) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	ticker := t.clock.NewTicker(t.interval)
	go t.run(ctx, ticker)

	return nil
}

// Stop cancels the timer and waits for the loop to exit. Safe to call
// more than once.
func (t *RefreshTimer) Stop() {
	if !t.started.Load() {
		return
	}
	t.cancel()
	<-t.done
	t.started.Store(false)
}

// Running reports whether the timer is active.
func (t *RefreshTimer) Running() bool {
	return t.started.Load()
}

func (t *RefreshTimer) run(ctx context.Context, ticker Ticker) {
	defer close(t.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			t.fn(ctx)
		}
	}
}

// ManualClock is a Clock whose time only moves when Advance is called.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManualClock returns a ManualClock starting at now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{
		clock:  c,
		ch:     make(chan time.Time, 1),
		period: d,
		next:   c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward, firing every ticker that comes due.
// A ticker whose channel is full drops the tick, like time.Ticker.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(c.now) {
			select {
			case t.ch <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

// Active returns the number of tickers that have not been stopped.
func (c *ManualClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type manualTicker struct {
	clock   *ManualClock
	ch      chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}
