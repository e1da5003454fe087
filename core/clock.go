package core

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTickRate is one tick per millisecond
const DefaultTickRate = 1000

// TickListener is notified once per tick, from the tick handler.
type TickListener interface {
	OnTick()
}

// Clock is the system time base: a wrapping tick counter advanced by a
// periodic interrupt, plus a separate countdown used by SpinWait.
type Clock struct {
	source TickSource
	rateHz uint32

	ticks     atomic.Uint32
	countdown atomic.Uint32

	initMu      sync.Mutex
	initialized atomic.Bool
	enabled     atomic.Bool

	listeners []TickListener
}

// NewClock creates a clock that will run from source at rateHz ticks per second.
// The source is not touched until Init.
func NewClock(source TickSource, rateHz uint32) *Clock {
	return &Clock{
		source: source,
		rateHz: rateHz,
	}
}

// Attach registers l to be called on every tick, after the counters advance.
// Listeners run in attach order and must be attached before Init.
func (c *Clock) Attach(l TickListener) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized.Load() {
		return ErrClockStarted
	}
	c.listeners = append(c.listeners, l)
	return nil
}

// Init arms the tick source. A second call is a no-op.
// Failure is returned as *ClockConfigError and must stop startup.
func (c *Clock) Init() error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized.Load() {
		return nil
	}

	if c.rateHz == 0 {
		return &ClockConfigError{RateHz: c.rateHz, Err: errZeroRate}
	}
	if err := c.source.Configure(c.rateHz, c.Tick); err != nil {
		return &ClockConfigError{RateHz: c.rateHz, Err: err}
	}

	c.enabled.Store(true)
	c.initialized.Store(true)
	DebugPrintln("[CLOCK] tick source armed at " + utoa(c.rateHz) + " Hz")
	return nil
}

// Tick is the interrupt body. Tick sources call it once per period; it must
// not be called from foreground code while the source is running.
func (c *Clock) Tick() {
	enterHandler()
	defer exitHandler()

	c.ticks.Add(1)

	// Only the handler decrements; CAS so a fresh SpinWait store is never lost.
	for {
		n := c.countdown.Load()
		if n == 0 || c.countdown.CompareAndSwap(n, n-1) {
			break
		}
	}

	for _, l := range c.listeners {
		l.OnTick()
	}
}

// Now returns the current tick count
func (c *Clock) Now() uint32 {
	return c.ticks.Load()
}

// Reset sets the tick count, typically to 0 before measuring an interval
func (c *Clock) Reset(value uint32) {
	c.ticks.Store(value)
	RecordEvent(EvtClockReset, 0, value, 0)
}

// Elapsed returns the ticks since an earlier Now reading, across wraparound
func (c *Clock) Elapsed(since uint32) uint32 {
	return c.ticks.Load() - since
}

// Rate returns the configured ticks per second
func (c *Clock) Rate() uint32 {
	return c.rateHz
}

// Running reports whether ticks are currently being delivered
func (c *Clock) Running() bool {
	return c.initialized.Load() && c.enabled.Load()
}

// EnableTick unmasks the tick source
func (c *Clock) EnableTick() {
	if !c.initialized.Load() {
		return
	}
	c.source.Enable()
	c.enabled.Store(true)
}

// DisableTick masks the tick source, e.g. around low-power sleep.
// Ticks that would have arrived while masked are not counted.
func (c *Clock) DisableTick() {
	if !c.initialized.Load() {
		return
	}
	c.enabled.Store(false)
	c.source.Disable()
}

// SpinWait busy-waits until ticks ticks have been delivered.
// It must never be called from a tick listener or timer callback: the
// countdown only moves when the handler that would be blocked runs.
func (c *Clock) SpinWait(ticks uint32) error {
	if !c.Running() {
		return ErrClockNotRunning
	}
	if ticks == 0 {
		return nil
	}

	c.countdown.Store(ticks)
	for c.countdown.Load() != 0 {
		if !c.enabled.Load() {
			c.countdown.Store(0)
			return ErrClockNotRunning
		}
		runtime.Gosched()
	}
	return nil
}

// Delay spin-waits for at least d at the configured tick rate
func (c *Clock) Delay(d time.Duration) error {
	return c.SpinWait(c.TicksFrom(d))
}

// DelayMs spin-waits for at least ms milliseconds
func (c *Clock) DelayMs(ms uint32) error {
	return c.Delay(time.Duration(ms) * time.Millisecond)
}

// TicksFrom converts a duration to ticks, rounding up so that any positive
// duration is at least one tick. The result saturates at MaxUint32.
func (c *Clock) TicksFrom(d time.Duration) uint32 {
	if d <= 0 || c.rateHz == 0 {
		return 0
	}
	rate := uint64(c.rateHz)
	whole, frac := uint64(d/time.Second), uint64(d%time.Second)
	ticks := whole*rate + (frac*rate+uint64(time.Second)-1)/uint64(time.Second)
	if ticks > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ticks)
}

// Duration converts ticks to wall time at the configured rate
func (c *Clock) Duration(ticks uint32) time.Duration {
	if c.rateHz == 0 {
		return 0
	}
	return time.Duration(uint64(ticks) * uint64(time.Second) / uint64(c.rateHz))
}
