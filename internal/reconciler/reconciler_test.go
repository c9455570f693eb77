package reconciler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/julianstephens/microhabits/internal/clock"
	"github.com/julianstephens/microhabits/internal/constants"
)

var epoch = time.Date(2024, 1, 10, 23, 58, 0, 0, time.UTC)

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconciliation pass")
		return Result{}
	}
}

func expectNoResult(t *testing.T, ch <-chan Result) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("unexpected reconciliation pass: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartRunsEagerly(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := clock.NewManual(epoch)
	var calls atomic.Int32
	h := Start(context.Background(), clk, time.Minute, func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"a"}, nil
	})
	defer h.Stop()

	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times before Start returned, want 1", got)
	}
	if h.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1", h.Runs())
	}
}

func TestLoopRunsOnEveryTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := clock.NewManual(epoch)
	results := make(chan Result, 8)
	h := Start(context.Background(), clk, time.Minute,
		func(ctx context.Context) ([]string, error) { return nil, nil },
		OnResult(func(r Result) { results <- r }),
	)
	defer h.Stop()

	waitResult(t, results) // eager pass

	for i := 0; i < 3; i++ {
		clk.Advance(time.Minute)
		r := waitResult(t, results)
		if !r.At.Equal(clk.Now()) {
			t.Errorf("pass %d at %v, want %v", i, r.At, clk.Now())
		}
	}

	// Less than a full interval does not fire
	clk.Advance(30 * time.Second)
	expectNoResult(t, results)
}

func TestStopIsIdempotentAndFinal(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := clock.NewManual(epoch)
	results := make(chan Result, 8)
	h := Start(context.Background(), clk, time.Minute,
		func(ctx context.Context) ([]string, error) { return nil, nil },
		OnResult(func(r Result) { results <- r }),
	)
	waitResult(t, results)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Stop()
		}()
	}
	wg.Wait()
	h.Stop()

	select {
	case <-h.Done():
	default:
		t.Fatal("Done() not closed after Stop returned")
	}
	if clk.Tickers() != 0 {
		t.Errorf("%d tickers still registered after Stop", clk.Tickers())
	}

	clk.Advance(time.Hour)
	expectNoResult(t, results)
}

func TestParentContextCancelStopsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := clock.NewManual(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	h := Start(ctx, clk, time.Minute, func(ctx context.Context) ([]string, error) { return nil, nil })

	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after context cancellation")
	}
	h.Stop()
}

func TestFailuresDoNotStopLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := clock.NewManual(epoch)
	results := make(chan Result, 8)
	var calls atomic.Int32
	boom := errors.New("database unavailable")

	h := Start(context.Background(), clk, time.Minute,
		func(ctx context.Context) ([]string, error) {
			if calls.Add(1) == 1 {
				return nil, boom
			}
			return []string{"h1"}, nil
		},
		OnResult(func(r Result) { results <- r }),
	)
	defer h.Stop()

	first := waitResult(t, results)
	if !errors.Is(first.Err, boom) {
		t.Errorf("first pass error = %v, want %v", first.Err, boom)
	}

	clk.Advance(time.Minute)
	second := waitResult(t, results)
	if second.Err != nil || len(second.Reset) != 1 {
		t.Errorf("second pass = %+v, want one reset and no error", second)
	}
}

func TestIntervalBounds(t *testing.T) {
	defer goleak.VerifyNone(t)

	clk := clock.NewManual(epoch)
	noop := func(ctx context.Context) ([]string, error) { return nil, nil }

	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{name: "zero uses default", in: 0, want: constants.DefaultReconcileInterval},
		{name: "negative uses default", in: -time.Second, want: constants.DefaultReconcileInterval},
		{name: "below minimum is raised", in: time.Millisecond, want: constants.MinReconcileInterval},
		{name: "explicit", in: 5 * time.Minute, want: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Start(context.Background(), clk, tt.in, noop)
			defer h.Stop()
			if h.Interval() != tt.want {
				t.Errorf("Interval() = %v, want %v", h.Interval(), tt.want)
			}
		})
	}
}

func TestStopNilHandle(t *testing.T) {
	var h *Handle
	h.Stop()
}
