package clock

import (
	"sync"
	"time"
)

// Manual is a Clock whose time only moves when Set or Advance is called.
// Tickers created from it fire synchronously during Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual returns a manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t, firing any tickers whose period elapsed.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	tickers := append([]*manualTicker(nil), m.tickers...)
	m.mu.Unlock()

	for _, tk := range tickers {
		tk.advanceTo(t)
	}
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.Set(m.Now().Add(d))
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tk := &manualTicker{
		clock:  m,
		period: d,
		next:   m.now.Add(d),
		c:      make(chan time.Time, 1),
	}
	m.tickers = append(m.tickers, tk)
	return tk
}

// Tickers returns the number of tickers that have not been stopped.
func (m *Manual) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

func (m *Manual) remove(tk *manualTicker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tickers {
		if t == tk {
			m.tickers = append(m.tickers[:i], m.tickers[i+1:]...)
			return
		}
	}
}

type manualTicker struct {
	clock  *Manual
	period time.Duration

	mu      sync.Mutex
	next    time.Time
	stopped bool
	c       chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.clock.remove(t)
}

// advanceTo delivers at most one pending tick, dropping the rest like time.Ticker does for slow receivers.
func (t *manualTicker) advanceTo(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || now.Before(t.next) {
		return
	}
	for !now.Before(t.next) {
		t.next = t.next.Add(t.period)
	}
	select {
	case t.c <- now:
	default:
	}
}
