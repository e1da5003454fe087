package main

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"tickcore/core"
	"tickcore/host/board"
)

// stopAfter is when the second demo timer is switched off
const stopAfter = 2000

// startDemoTimers creates two auto-reload timers at 100 and 200 ticks and
// stops the second one once 2000 ticks have passed.
func startDemoTimers(b *board.Board) error {
	// Runs in the tick handler, so it must not block on the log writer.
	logFire := func(ctx any) {
		if core.IsDebugEnabled() {
			core.DebugAsync("[DEMO] " + ctx.(string) + " fired at tick " + strconv.FormatUint(uint64(b.Clock.Now()), 10))
		}
	}

	if _, err := b.Timers.Create(100, true, true, logFire, "timer1"); err != nil {
		return err
	}
	timer2, err := b.Timers.Create(200, true, true, logFire, "timer2")
	if err != nil {
		return err
	}

	_, err = b.Timers.Create(stopAfter, false, true, func(any) {
		if err := b.Timers.Stop(timer2); err != nil {
			slog.Warn("stop timer2", "err", err)
			return
		}
		slog.Info("timer2 stopped", "tick", b.Clock.Now())
	}, nil)
	return err
}

// echoLines sends every complete received line back out of the USART. With
// a loopback port the echo would feed itself, so lines are logged instead.
func echoLines(ctx context.Context, b *board.Board, logOnly bool) {
	buf := make([]byte, b.Config().RxBufferSize)
	for {
		n, err := b.USART.GetsContext(ctx, buf)
		if err != nil {
			return
		}
		if logOnly {
			slog.Info("line received", "line", strings.TrimRight(string(buf[:n]), "\r\n"))
			continue
		}
		if err := b.USART.Puts(string(buf[:n])); err != nil {
			slog.Warn("echo failed", "err", err)
		}
	}
}
