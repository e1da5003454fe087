package board

import (
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// blinkPeriod is the LED half-period
const blinkPeriod = 500 * time.Millisecond

type led struct {
	pin gpio.PinIO
	on  atomic.Bool
}

func openLED(name string) (*led, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %s not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpio %s: %w", name, err)
	}
	return &led{pin: pin}, nil
}

func (l *led) toggle() {
	level := gpio.Low
	if !l.on.Load() {
		level = gpio.High
	}
	if l.pin.Out(level) == nil {
		l.on.Store(level == gpio.High)
	}
}

func (l *led) off() {
	l.pin.Out(gpio.Low)
	l.on.Store(false)
}

func (b *Board) startBlink() error {
	ticks := b.Clock.TicksFrom(blinkPeriod)
	_, err := b.Timers.Create(ticks, true, true, func(any) {
		b.led.toggle()
	}, nil)
	if err != nil {
		return fmt.Errorf("led timer: %w", err)
	}
	return nil
}
