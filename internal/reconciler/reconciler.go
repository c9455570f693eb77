// Package reconciler runs the periodic midnight reconciliation for one owner.
//
// A loop is started with Start, which invokes the reconcile function once
// before returning and then again on every tick of the injected clock. The
// returned Handle must be stopped when the owning session ends; Stop blocks
// until the loop goroutine has exited and its ticker is released.
package reconciler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/microhabits/internal/clock"
	"github.com/julianstephens/microhabits/internal/constants"
	"github.com/julianstephens/microhabits/internal/logger"
)

// Func performs one reconciliation pass and returns the ids it reset.
type Func func(ctx context.Context) ([]string, error)

// Result describes one completed pass.
type Result struct {
	At    time.Time
	Reset []string
	Err   error
}

type Option func(*Handle)

// OnResult registers a callback invoked after every pass, on the loop goroutine.
// The callback must not call Stop on the same handle.
func OnResult(fn func(Result)) Option {
	return func(h *Handle) {
		h.onResult = fn
	}
}

// WithLogger replaces the logger used for pass failures.
func WithLogger(l *log.Logger) Option {
	return func(h *Handle) {
		h.log = l
	}
}

// Handle controls a running loop.
type Handle struct {
	clock    clock.Clock
	interval time.Duration
	fn       Func
	onResult func(Result)
	log      *log.Logger

	cancel   context.CancelFunc
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	runs     atomic.Int64
}

// Start runs fn once, then starts the periodic loop. A non-positive interval
// falls back to the default; intervals below the minimum are raised to it.
func Start(ctx context.Context, clk clock.Clock, interval time.Duration, fn Func, opts ...Option) *Handle {
	switch {
	case interval <= 0:
		interval = constants.DefaultReconcileInterval
	case interval < constants.MinReconcileInterval:
		interval = constants.MinReconcileInterval
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		clock:    clk,
		interval: interval,
		fn:       fn,
		cancel:   cancel,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.ForComponent("reconciler")
	}

	// Eager pass catches up on everything missed while inactive
	h.invoke(runCtx)

	ticker := clk.NewTicker(interval)
	go h.run(runCtx, ticker)

	h.log.Debug("Reconciliation loop started", "interval", interval)
	return h
}

func (h *Handle) run(ctx context.Context, ticker clock.Ticker) {
	defer close(h.doneChan)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
			// select picks randomly among ready cases; a pending stop wins over a tick
			if h.stopping(ctx) {
				return
			}
			h.invoke(ctx)
		}
	}
}

func (h *Handle) stopping(ctx context.Context) bool {
	select {
	case <-h.stopChan:
		return true
	default:
		return ctx.Err() != nil
	}
}

func (h *Handle) invoke(ctx context.Context) {
	ids, err := h.fn(ctx)
	h.runs.Add(1)

	if err != nil {
		// Failures never stop the loop; the next tick retries the same predicate
		h.log.Warn("Reconciliation failed", "error", err)
	} else if len(ids) > 0 {
		h.log.Info("Reset stale completions", "count", len(ids))
	}

	if h.onResult != nil {
		h.onResult(Result{At: h.clock.Now(), Reset: ids, Err: err})
	}
}

// Stop ends the loop and waits for it to exit. It is safe to call more than once
// and from multiple goroutines.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		close(h.stopChan)
		h.cancel()
	})
	<-h.doneChan
}

// Done is closed once the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.doneChan
}

// Runs returns the number of completed passes, including the eager one.
func (h *Handle) Runs() int64 {
	return h.runs.Load()
}

// Interval returns the effective tick interval.
func (h *Handle) Interval() time.Duration {
	return h.interval
}
