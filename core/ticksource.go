package core

import (
	"errors"
	"sync/atomic"
)

var errZeroRate = errors.New("tick rate must be non-zero")

// TickSource is the periodic interrupt that drives a Clock.
//
// Configure arms the source so that isr runs rateHz times per second, from
// interrupt context on hardware or from a dedicated goroutine on a host.
// Enable and Disable mask the source without reconfiguring it.
type TickSource interface {
	Configure(rateHz uint32, isr func()) error
	Enable()
	Disable()
}

// ManualSource is a TickSource advanced explicitly with Step.
// It stands in for the hardware timer in tests and deterministic simulations.
type ManualSource struct {
	// Err, when set, is returned by Configure to simulate a source that
	// cannot be armed.
	Err error

	isr     func()
	enabled atomic.Bool
}

// NewManualSource creates an unarmed manual source
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Configure records the handler; the rate is only validated
func (m *ManualSource) Configure(rateHz uint32, isr func()) error {
	if m.Err != nil {
		return m.Err
	}
	if rateHz == 0 {
		return errZeroRate
	}
	m.isr = isr
	m.enabled.Store(true)
	return nil
}

func (m *ManualSource) Enable()  { m.enabled.Store(true) }
func (m *ManualSource) Disable() { m.enabled.Store(false) }

// Step delivers n ticks. Ticks arriving while the source is disabled are lost,
// exactly as a masked hardware interrupt would be.
func (m *ManualSource) Step(n int) {
	for i := 0; i < n; i++ {
		if m.isr == nil || !m.enabled.Load() {
			continue
		}
		m.isr()
	}
}
