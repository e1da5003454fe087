//go:build stm32f4disco

package main

import (
	"machine"

	"tickcore/core"
	"tickcore/usart"
)

const (
	tickRate   = core.DefaultTickRate
	maxTimers  = 8
	rxBufSize  = usart.DefaultBufferSize
	stopTimer2 = 2000
)

var (
	clock  *core.Clock
	timers *core.TimerEngine
	port   *usart.Port
)

func main() {
	machine.LED_GREEN.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.LED_RED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.LED_ORANGE.Configure(machine.PinConfig{Mode: machine.PinOutput})

	uart := machine.UART1
	uart.Configure(machine.UARTConfig{BaudRate: 115200})
	core.SetDebugWriter(func(msg string) {
		uart.Write([]byte(msg))
		uart.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)

	clock = core.NewClock(SysTickSource{}, tickRate)
	timers = core.NewTimerEngine(maxTimers)
	port = usart.NewPort(1, rxBufSize, uart)
	if err := clock.Attach(timers); err != nil {
		halt("attach", err)
	}

	if err := clock.Init(); err != nil {
		halt("clock", err)
	}
	core.SetEventClock(clock)

	mustCreate(100, toggle, machine.LED_GREEN)
	timer2 := mustCreate(200, toggle, machine.LED_RED)

	// The hardware UART keeps its own small buffer; drain it every tick.
	mustCreate(1, func(any) {
		for uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			port.Receive(b)
		}
	}, nil)

	acc := newAccel()
	mustCreate(clock.TicksFrom(accelPeriod), acc.markDue, nil)

	port.Puts("tickcore ready\r\n")

	line := make([]byte, rxBufSize)
	stopped := false
	for {
		if !stopped && clock.Now() > stopTimer2 {
			if err := timers.Stop(timer2); err != nil {
				halt("stop timer2", err)
			}
			machine.LED_RED.Low()
			stopped = true
		}

		if n := port.Gets(line); n > 0 {
			port.Write(line[:n])
		}

		if acc.poll() {
			core.DebugPrintln("accel x=" + itoa(acc.X) + " y=" + itoa(acc.Y) + " z=" + itoa(acc.Z))
		}
	}
}

// mustCreate starts an auto-reload timer or halts
func mustCreate(interval uint32, fn core.TimerFunc, ctx any) core.Handle {
	h, err := timers.Create(interval, true, true, fn, ctx)
	if err != nil {
		halt("timer", err)
	}
	return h
}

// halt reports err and stops with the orange LED lit. Nothing is scheduled
// past a startup failure.
func halt(what string, err error) {
	core.DebugPrintln("[HALT] " + what + ": " + err.Error())
	core.DumpEvents()
	machine.LED_ORANGE.High()
	for {
	}
}

func toggle(ctx any) {
	pin := ctx.(machine.Pin)
	pin.Set(!pin.Get())
}

func itoa(v int16) string {
	var buf [6]byte
	i := len(buf)
	n := int32(v)
	neg := n < 0
	if neg {
		n = -n
	}
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
