package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func newTestClock(t *testing.T) (*Clock, *ManualSource) {
	t.Helper()
	src := NewManualSource()
	clock := NewClock(src, DefaultTickRate)
	if err := clock.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return clock, src
}

type countingSource struct {
	ManualSource
	configured int
}

func (c *countingSource) Configure(rateHz uint32, isr func()) error {
	c.configured++
	return c.ManualSource.Configure(rateHz, isr)
}

type recordingListener struct {
	name string
	log  *[]string
}

func (r recordingListener) OnTick() {
	*r.log = append(*r.log, r.name)
}

func TestClockCountsTicks(t *testing.T) {
	clock, src := newTestClock(t)

	for _, n := range []int{0, 1, 7, 1000} {
		clock.Reset(0)
		src.Step(n)
		if got := clock.Now(); got != uint32(n) {
			t.Errorf("After %d ticks, expected Now()=%d, got %d", n, n, got)
		}
	}
}

func TestClockWrapsAround(t *testing.T) {
	clock, src := newTestClock(t)

	clock.Reset(math.MaxUint32 - 1)
	start := clock.Now()
	src.Step(3)

	if got := clock.Now(); got != 1 {
		t.Errorf("Expected counter to wrap to 1, got %d", got)
	}
	if got := clock.Elapsed(start); got != 3 {
		t.Errorf("Expected 3 ticks elapsed across wrap, got %d", got)
	}
}

func TestClockInitIdempotent(t *testing.T) {
	src := &countingSource{}
	clock := NewClock(src, DefaultTickRate)

	if err := clock.Init(); err != nil {
		t.Fatalf("First Init failed: %v", err)
	}
	src.Step(5)

	if err := clock.Init(); err != nil {
		t.Fatalf("Second Init failed: %v", err)
	}
	if src.configured != 1 {
		t.Errorf("Expected source configured once, got %d", src.configured)
	}
	if clock.Now() != 5 {
		t.Errorf("Second Init must not reset the counter, got %d", clock.Now())
	}
}

func TestClockInitFailure(t *testing.T) {
	cause := errors.New("reload value out of range")
	src := &ManualSource{Err: cause}
	clock := NewClock(src, 168000000)

	err := clock.Init()
	var cfgErr *ClockConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected *ClockConfigError, got %v", err)
	}
	if cfgErr.RateHz != 168000000 {
		t.Errorf("Expected rate 168000000 in error, got %d", cfgErr.RateHz)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected error to wrap the source failure, got %v", err)
	}
	if clock.Running() {
		t.Error("Clock must not report running after failed Init")
	}

	// A later successful Init is still possible once the source is fixed.
	src.Err = nil
	if err := clock.Init(); err != nil {
		t.Errorf("Init after fixing source failed: %v", err)
	}
}

func TestClockZeroRate(t *testing.T) {
	clock := NewClock(NewManualSource(), 0)
	var cfgErr *ClockConfigError
	if err := clock.Init(); !errors.As(err, &cfgErr) {
		t.Errorf("Expected *ClockConfigError for zero rate, got %v", err)
	}
}

func TestClockDisableTick(t *testing.T) {
	clock, src := newTestClock(t)

	src.Step(2)
	clock.DisableTick()
	src.Step(10)
	if clock.Now() != 2 {
		t.Errorf("Expected masked ticks to be lost, got %d", clock.Now())
	}
	if clock.Running() {
		t.Error("Clock must not report running while masked")
	}

	clock.EnableTick()
	src.Step(3)
	if clock.Now() != 5 {
		t.Errorf("Expected 5 ticks after unmasking, got %d", clock.Now())
	}
}

func TestClockListenersRunInOrder(t *testing.T) {
	src := NewManualSource()
	clock := NewClock(src, DefaultTickRate)

	var log []string
	clock.Attach(recordingListener{name: "a", log: &log})
	clock.Attach(recordingListener{name: "b", log: &log})
	if err := clock.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	src.Step(2)
	want := []string{"a", "b", "a", "b"}
	if len(log) != len(want) {
		t.Fatalf("Expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, log)
			break
		}
	}

	if err := clock.Attach(recordingListener{name: "c", log: &log}); !errors.Is(err, ErrClockStarted) {
		t.Errorf("Expected ErrClockStarted after Init, got %v", err)
	}
}

func TestClockSpinWait(t *testing.T) {
	clock, src := newTestClock(t)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				src.Step(1)
			}
		}
	}()

	start := clock.Now()
	err := clock.SpinWait(25)
	close(done)

	if err != nil {
		t.Fatalf("SpinWait failed: %v", err)
	}
	if got := clock.Elapsed(start); got < 25 {
		t.Errorf("Expected at least 25 ticks to elapse, got %d", got)
	}
}

func TestClockSpinWaitNotRunning(t *testing.T) {
	clock := NewClock(NewManualSource(), DefaultTickRate)
	if err := clock.SpinWait(10); !errors.Is(err, ErrClockNotRunning) {
		t.Errorf("Expected ErrClockNotRunning before Init, got %v", err)
	}

	clock.Init()
	clock.DisableTick()
	if err := clock.SpinWait(10); !errors.Is(err, ErrClockNotRunning) {
		t.Errorf("Expected ErrClockNotRunning while masked, got %v", err)
	}

	clock.EnableTick()
	if err := clock.SpinWait(0); err != nil {
		t.Errorf("SpinWait(0) should return immediately, got %v", err)
	}
}

func TestClockConversions(t *testing.T) {
	tests := []struct {
		rate  uint32
		d     time.Duration
		ticks uint32
	}{
		{1000, time.Millisecond, 1},
		{1000, 500 * time.Millisecond, 500},
		{1000, time.Microsecond, 1}, // rounds up
		{1000, 0, 0},
		{1000000, time.Millisecond, 1000},
		{1000000, 2 * time.Second, 2000000},
		{1000, time.Duration(math.MaxInt64), math.MaxUint32},
	}

	for _, tt := range tests {
		clock := NewClock(NewManualSource(), tt.rate)
		if got := clock.TicksFrom(tt.d); got != tt.ticks {
			t.Errorf("rate=%d TicksFrom(%v): expected %d, got %d", tt.rate, tt.d, tt.ticks, got)
		}
	}

	clock := NewClock(NewManualSource(), 1000)
	if got := clock.Duration(1500); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s for 1500 ticks at 1kHz, got %v", got)
	}
}

func TestClockDelay(t *testing.T) {
	clock, src := newTestClock(t)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				src.Step(1)
			}
		}
	}()
	defer close(done)

	start := clock.Now()
	if err := clock.Delay(5 * time.Millisecond); err != nil {
		t.Fatalf("Delay failed: %v", err)
	}
	if got := clock.Elapsed(start); got < 5 {
		t.Errorf("Expected at least 5 ticks for 5ms, got %d", got)
	}

	start = clock.Now()
	if err := clock.DelayMs(3); err != nil {
		t.Fatalf("DelayMs failed: %v", err)
	}
	if got := clock.Elapsed(start); got < 3 {
		t.Errorf("Expected at least 3 ticks for 3ms, got %d", got)
	}
}

func TestClockDelayNotRunning(t *testing.T) {
	clock := NewClock(NewManualSource(), DefaultTickRate)
	if err := clock.DelayMs(1); !errors.Is(err, ErrClockNotRunning) {
		t.Errorf("Expected ErrClockNotRunning before Init, got %v", err)
	}
}
