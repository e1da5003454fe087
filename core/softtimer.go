package core

import "math"

// TimerFunc is called when a software timer expires. It runs inside the tick
// handler, so it must be short and must not block or spin-wait.
type TimerFunc func(ctx any)

// Handle names one allocation of a timer slot. The zero Handle is never issued.
type Handle struct {
	slot uint16
	gen  uint32
}

// Slot returns the registry index the handle refers to
func (h Handle) Slot() int {
	return int(h.slot)
}

// IsZero reports whether h is the zero Handle
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// Slot states
const (
	slotFree     = 0
	slotArmed    = 1
	slotDisabled = 2
)

// MaxTimerCapacity bounds the registry so slot indices fit a Handle
const MaxTimerCapacity = 1 << 16

// maxGen is the last generation a slot may issue. The slot is never
// allocated again after that, so an old handle can never match a new timer.
const maxGen = math.MaxUint32

type softTimer struct {
	state      uint8
	autoReload bool
	gen        uint32 // bumped per allocation; a slot at maxGen is retired
	remaining  uint32 // >= 1 whenever state == slotArmed
	reload     uint32
	fires      uint32
	callback   TimerFunc
	context    any
}

type pendingFire struct {
	callback TimerFunc
	context  any
}

// TimerEngine multiplexes one tick interrupt into a fixed number of
// countdown timers. All slot mutation happens with interrupts disabled.
type TimerEngine struct {
	slots   []softTimer
	pending []pendingFire // callbacks collected by the running OnTick
	active  int
}

// NewTimerEngine creates a registry with room for capacity timers.
// The registry never grows.
func NewTimerEngine(capacity int) *TimerEngine {
	if capacity <= 0 || capacity > MaxTimerCapacity {
		panic("timer capacity out of range")
	}
	return &TimerEngine{
		slots:   make([]softTimer, capacity),
		pending: make([]pendingFire, capacity),
	}
}

// Cap returns the registry capacity
func (e *TimerEngine) Cap() int {
	return len(e.slots)
}

// Active returns the number of allocated slots
func (e *TimerEngine) Active() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return e.active
}

// Create allocates the lowest free slot that has not been retired. The timer fires on the interval-th
// tick after creation (once enabled), then reloads or disables itself.
func (e *TimerEngine) Create(interval uint32, autoReload, startEnabled bool, fn TimerFunc, ctx any) (Handle, error) {
	if interval == 0 {
		return Handle{}, ErrInvalidInterval
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range e.slots {
		t := &e.slots[i]
		if t.state != slotFree || t.gen == maxGen {
			continue
		}

		t.gen++
		t.remaining = interval
		t.reload = interval
		t.autoReload = autoReload
		t.fires = 0
		t.callback = fn
		t.context = ctx
		if startEnabled {
			t.state = slotArmed
		} else {
			t.state = slotDisabled
		}
		e.active++

		recordEventMasked(EvtTimerCreate, uint16(i), interval, b2u(autoReload))
		return Handle{slot: uint16(i), gen: t.gen}, nil
	}

	return Handle{}, ErrCapacityExceeded
}

// Stop disables the timer, keeping its remaining count. Stopping a stopped
// timer does nothing.
func (e *TimerEngine) Stop(h Handle) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t, err := e.resolve(h)
	if err != nil {
		return publicErr(err)
	}
	if t.state == slotArmed {
		t.state = slotDisabled
		recordEventMasked(EvtTimerStop, h.slot, t.remaining, 0)
	}
	return nil
}

// Start enables the timer, resuming from its remaining count. A timer with
// nothing left to count (an expired one-shot) restarts from its interval.
func (e *TimerEngine) Start(h Handle) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t, err := e.resolve(h)
	if err != nil {
		return publicErr(err)
	}
	if t.state == slotDisabled {
		if t.remaining == 0 {
			t.remaining = t.reload
		}
		t.state = slotArmed
		recordEventMasked(EvtTimerStart, h.slot, t.remaining, 0)
	}
	return nil
}

// Reset restarts the countdown from the full interval and enables the timer
func (e *TimerEngine) Reset(h Handle) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t, err := e.resolve(h)
	if err != nil {
		return publicErr(err)
	}
	t.remaining = t.reload
	t.state = slotArmed
	recordEventMasked(EvtTimerStart, h.slot, t.remaining, 0)
	return nil
}

// ChangeInterval sets the reload value. A countdown in progress is not
// shortened; the new interval applies from the next reload.
func (e *TimerEngine) ChangeInterval(h Handle, interval uint32) error {
	if interval == 0 {
		return ErrInvalidInterval
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	t, err := e.resolve(h)
	if err != nil {
		return publicErr(err)
	}
	t.reload = interval
	return nil
}

// SetAutoReload switches the timer between periodic and one-shot
func (e *TimerEngine) SetAutoReload(h Handle, on bool) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t, err := e.resolve(h)
	if err != nil {
		return publicErr(err)
	}
	t.autoReload = on
	return nil
}

// Remaining returns the ticks left before the timer next fires
func (e *TimerEngine) Remaining(h Handle) (uint32, error) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t, err := e.resolve(h)
	if err != nil {
		return 0, publicErr(err)
	}
	return t.remaining, nil
}

// Destroy releases the slot. The slot leaves the tick scan and is cleared in
// one masked section, so a tick sees it either whole or gone. Destroying an
// already destroyed handle does nothing.
func (e *TimerEngine) Destroy(h Handle) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t, err := e.resolve(h)
	if err == errStaleHandle {
		return nil
	}
	if err != nil {
		return err
	}

	t.state = slotFree
	t.callback = nil
	t.context = nil
	t.remaining = 0
	t.reload = 0
	e.active--
	recordEventMasked(EvtTimerDestroy, h.slot, t.fires, 0)
	return nil
}

// OnTick advances every armed timer by one tick, in slot order. It is the
// tick listener body and must not be called concurrently with itself.
//
// Expired timers are reloaded or disabled while interrupts are masked; their
// callbacks then run in slot order with the mask released, so a callback may
// stop, start, create or destroy timers on this engine.
func (e *TimerEngine) OnTick() {
	state := disableInterrupts()
	n := 0
	for i := range e.slots {
		t := &e.slots[i]
		if t.state != slotArmed {
			continue
		}

		t.remaining--
		if t.remaining != 0 {
			continue
		}

		t.fires++
		if t.autoReload {
			t.remaining = t.reload
		} else {
			t.state = slotDisabled
		}
		recordEventMasked(EvtTimerFire, uint16(i), t.fires, 0)

		if t.callback != nil {
			e.pending[n] = pendingFire{callback: t.callback, context: t.context}
			n++
		}
	}
	restoreInterrupts(state)

	for i := 0; i < n; i++ {
		p := e.pending[i]
		e.pending[i] = pendingFire{}
		p.callback(p.context)
	}
}

// TimerInfo is a read-only view of one allocated slot
type TimerInfo struct {
	Handle     Handle
	Remaining  uint32
	Interval   uint32
	AutoReload bool
	Enabled    bool
	Fires      uint32
}

// Snapshot returns every allocated timer in slot order
func (e *TimerEngine) Snapshot() []TimerInfo {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]TimerInfo, 0, e.active)
	for i := range e.slots {
		t := &e.slots[i]
		if t.state == slotFree {
			continue
		}
		out = append(out, TimerInfo{
			Handle:     Handle{slot: uint16(i), gen: t.gen},
			Remaining:  t.remaining,
			Interval:   t.reload,
			AutoReload: t.autoReload,
			Enabled:    t.state == slotArmed,
			Fires:      t.fires,
		})
	}
	return out
}

// resolve must be called with interrupts disabled
func (e *TimerEngine) resolve(h Handle) (*softTimer, error) {
	if h.IsZero() || int(h.slot) >= len(e.slots) {
		return nil, ErrHandleInvalid
	}
	t := &e.slots[h.slot]
	if t.gen == h.gen && t.state != slotFree {
		return t, nil
	}
	if h.gen <= t.gen {
		return nil, errStaleHandle
	}
	return nil, ErrHandleInvalid
}

func publicErr(err error) error {
	if err == errStaleHandle {
		return ErrHandleInvalid
	}
	return err
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
