//go:build !tinygo

package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// hostMaxRate is the fastest tick a time.Ticker can follow with useful accuracy.
const hostMaxRate = 100000

// HostSource drives a Clock from a time.Ticker goroutine.
// Ticks are coarse and may be coalesced under load; it is meant for running
// the core on a workstation, not for timing measurements.
type HostSource struct {
	mu      sync.Mutex
	enabled atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewHostSource creates an unarmed host tick source
func NewHostSource() *HostSource {
	return &HostSource{}
}

// Configure starts the ticker goroutine. Calling it on an armed source fails.
func (h *HostSource) Configure(rateHz uint32, isr func()) error {
	if rateHz == 0 {
		return errZeroRate
	}
	if rateHz > hostMaxRate {
		return errors.New("tick rate above host timer resolution")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return errors.New("host tick source already armed")
	}

	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	h.enabled.Store(true)

	period := time.Second / time.Duration(rateHz)
	go h.run(period, isr, h.stop, h.done)
	return nil
}

func (h *HostSource) run(period time.Duration, isr func(), stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if h.enabled.Load() {
				isr()
			}
		case <-stop:
			return
		}
	}
}

func (h *HostSource) Enable()  { h.enabled.Store(true) }
func (h *HostSource) Disable() { h.enabled.Store(false) }

// Close stops the ticker goroutine and waits for an in-flight tick to finish.
func (h *HostSource) Close() error {
	h.mu.Lock()
	stop, done := h.stop, h.done
	h.stop = nil
	h.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}
