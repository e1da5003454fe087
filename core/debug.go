package core

import (
	"sync"
	"sync/atomic"
)

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a timer or buffer event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Slot      uint16 // Timer slot or port number
	Clock     uint32 // Tick count at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtTimerCreate  = 1 // v1=interval v2=autoReload
	EvtTimerFire    = 2 // v1=fire count
	EvtTimerStop    = 3 // v1=remaining
	EvtTimerStart   = 4 // v1=remaining
	EvtTimerDestroy = 5 // v1=fire count
	EvtByteDropped  = 6 // v1=byte v2=total dropped
	EvtClockReset   = 7 // v1=new tick count
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln atomic.Pointer[DebugWriter]

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled atomic.Bool

	// eventClock timestamps recorded events; nil leaves Clock at 0
	eventClock atomic.Pointer[Clock]

	// Timing capture ring buffer, guarded by the interrupt mask
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  atomic.Bool

	// Async debug output channel, set once by InitAsyncDebug
	debugChan     atomic.Pointer[chan string]
	debugChanOnce sync.Once
)

func init() {
	timingEnabled.Store(true)
}

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, a logger, etc.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		debugPrintln.Store(nil)
		return
	}
	debugPrintln.Store(&writer)
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

// SetEventClock selects the clock used to timestamp recorded events
func SetEventClock(c *Clock) {
	eventClock.Store(c)
}

// SetTimingEnabled turns event capture on or off
func SetTimingEnabled(enabled bool) {
	timingEnabled.Store(enabled)
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter. Later calls do nothing.
func InitAsyncDebug() {
	debugChanOnce.Do(func() {
		ch := make(chan string, 16)
		go debugOutputWorker(ch)
		debugChan.Store(&ch)
	})
}

func debugOutputWorker(ch chan string) {
	for msg := range ch {
		if w := debugPrintln.Load(); w != nil {
			(*w)(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer.
// It blocks on the writer; use DebugAsync from time-critical code.
func DebugPrintln(msg string) {
	if !debugEnabled.Load() {
		return
	}
	if w := debugPrintln.Load(); w != nil {
		(*w)(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	ch := debugChan.Load()
	if ch == nil || !debugEnabled.Load() {
		return
	}
	select {
	case *ch <- msg:
	default:
	}
}

// RecordEvent captures an event in the timing ring. It never blocks on I/O
// and is safe from interrupt context.
func RecordEvent(eventType uint8, slot uint16, value1, value2 uint32) {
	state := disableInterrupts()
	recordEventMasked(eventType, slot, value1, value2)
	restoreInterrupts(state)
}

// recordEventMasked must be called with interrupts disabled
func recordEventMasked(eventType uint8, slot uint16, value1, value2 uint32) {
	if !timingEnabled.Load() {
		return
	}
	var now uint32
	if c := eventClock.Load(); c != nil {
		now = c.Now()
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Slot:      slot,
		Clock:     now,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// Events returns the recorded events, oldest first
func Events() []TimingEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns a short label for an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtTimerCreate:
		return "TIMER_CREATE"
	case EvtTimerFire:
		return "TIMER_FIRE"
	case EvtTimerStop:
		return "TIMER_STOP"
	case EvtTimerStart:
		return "TIMER_START"
	case EvtTimerDestroy:
		return "TIMER_DESTROY"
	case EvtByteDropped:
		return "RX_DROP"
	case EvtClockReset:
		return "CLOCK_RESET"
	default:
		return "UNKNOWN"
	}
}

// DumpEvents writes the timing ring through the debug writer, regardless of
// whether debug output is enabled. Call it on shutdown or after an error.
func DumpEvents() {
	w := debugPrintln.Load()
	if w == nil {
		return
	}
	out := *w

	out("[TIMING] === Timing Ring Dump ===")
	for _, evt := range Events() {
		line := "[TIMING] " + EventName(evt.EventType) +
			" slot=" + utoa(uint32(evt.Slot)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2)
		if evt.EventType == EvtByteDropped {
			line += " byte=" + hex8(uint8(evt.Value1))
		}
		out(line)
	}
	out("[TIMING] === End Dump ===")
}

// ClearEvents clears the timing ring
func ClearEvents() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
