package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tickcore/config"
	"tickcore/core"
	"tickcore/host/serial"
	"tickcore/usart"
)

// usartNum is the port number reported in events and status
const usartNum = 1

// Options override the hardware a Board would otherwise open itself
type Options struct {
	// Source drives the clock; nil selects a time.Ticker host source
	Source core.TickSource

	// Port carries the USART traffic; nil opens cfg.Serial.Device
	Port serial.Port

	// LEDPin names a GPIO (periph naming, e.g. "GPIO17") blinked by a soft
	// timer; empty disables the LED
	LEDPin string

	Logger *slog.Logger
}

// Board ties the tick clock, the soft timer engine and one USART together
// the way the firmware does, with the serial port standing in for the UART
// receive interrupt.
type Board struct {
	cfg     *config.Config
	log     *slog.Logger
	session uuid.UUID
	started time.Time

	Clock  *core.Clock
	Timers *core.TimerEngine
	USART  *usart.Port

	source core.TickSource
	port   serial.Port
	led    *led

	dropLimiter *rate.Limiter
	lastDropped atomic.Uint32
}

// New builds a board from cfg. The clock is not started until Run.
func New(cfg *config.Config, opts Options) (*Board, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	b := &Board{
		cfg:         cfg,
		session:     uuid.New(),
		source:      opts.Source,
		port:        opts.Port,
		dropLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	b.log = log.With("session", b.session.String())

	if b.source == nil {
		b.source = core.NewHostSource()
	}
	if b.port == nil {
		port, err := serial.Open(serial.FromConfig(cfg.Serial))
		if err != nil {
			return nil, err
		}
		b.port = port
	}

	b.Clock = core.NewClock(b.source, cfg.TickRateHz)
	b.Timers = core.NewTimerEngine(cfg.MaxTimers)
	b.USART = usart.NewPort(usartNum, cfg.RxBufferSize, b.port)

	if err := b.Clock.Attach(b.Timers); err != nil {
		return nil, err
	}

	if opts.LEDPin != "" {
		l, err := openLED(opts.LEDPin)
		if err != nil {
			b.port.Close()
			return nil, err
		}
		b.led = l
		if err := b.startBlink(); err != nil {
			b.port.Close()
			return nil, err
		}
	}

	return b, nil
}

// Session returns the id attached to this run's log lines
func (b *Board) Session() string {
	return b.session.String()
}

// Config returns the configuration the board was built from
func (b *Board) Config() *config.Config {
	return b.cfg
}

// Run starts the clock and feeds received bytes into the USART until ctx is
// done. A clock configuration failure is returned before anything else runs.
func (b *Board) Run(ctx context.Context) error {
	if err := b.Clock.Init(); err != nil {
		b.port.Close()
		return fmt.Errorf("clock init: %w", err)
	}
	core.SetEventClock(b.Clock)
	b.started = time.Now()

	b.log.Info("board running",
		"rate_hz", b.Clock.Rate(),
		"timers", b.Timers.Cap(),
		"rx_buffer", b.cfg.RxBufferSize)

	defer b.shutdown()

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.pump(ctx)
	}()

	select {
	case <-ctx.Done():
		// Closing the port unblocks the pending Read.
		b.port.Close()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// pump is the simulated receive interrupt: every byte read from the port is
// handed to the USART one at a time.
func (b *Board) pump(ctx context.Context) error {
	buf := make([]byte, 64)
	for {
		n, err := b.port.Read(buf)
		for i := 0; i < n; i++ {
			b.USART.Receive(buf[i])
		}
		if n > 0 {
			b.checkDrops()
		}

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			// A read timeout surfaces as io.EOF on native ports.
			if errors.Is(err, io.EOF) {
				continue
			}
			return fmt.Errorf("serial read: %w", err)
		}
	}
}

func (b *Board) checkDrops() {
	dropped := b.USART.Stats().Dropped
	if dropped == b.lastDropped.Load() || !b.dropLimiter.Allow() {
		return
	}
	b.lastDropped.Store(dropped)
	b.log.Warn("usart receive overflow",
		"port", b.USART.Num(),
		"dropped", dropped,
		"capacity", b.cfg.RxBufferSize)
}

func (b *Board) shutdown() {
	b.Clock.DisableTick()
	if c, ok := b.source.(io.Closer); ok {
		c.Close()
	}
	if b.led != nil {
		b.led.off()
	}
	core.SetEventClock(nil)
	b.port.Close()

	st := b.USART.Stats()
	b.log.Info("board stopped",
		"ticks", b.Clock.Now(),
		"received", st.Received,
		"dropped", st.Dropped)
}

// TimerStatus is the JSON view of one soft timer
type TimerStatus struct {
	Slot       int    `json:"slot"`
	Remaining  uint32 `json:"remaining"`
	Interval   uint32 `json:"interval"`
	AutoReload bool   `json:"auto_reload"`
	Enabled    bool   `json:"enabled"`
	Fires      uint32 `json:"fires"`
}

// Status is a point-in-time report of the board
type Status struct {
	Session string        `json:"session"`
	Ticks   uint32        `json:"ticks"`
	RateHz  uint32        `json:"rate_hz"`
	Running bool          `json:"running"`
	Uptime  string        `json:"uptime"`
	Timers  []TimerStatus `json:"timers"`
	USART   usart.Stats   `json:"usart"`
}

// Status reports ticks, timers and USART counters
func (b *Board) Status() Status {
	infos := b.Timers.Snapshot()
	timers := make([]TimerStatus, 0, len(infos))
	for _, info := range infos {
		timers = append(timers, TimerStatus{
			Slot:       info.Handle.Slot(),
			Remaining:  info.Remaining,
			Interval:   info.Interval,
			AutoReload: info.AutoReload,
			Enabled:    info.Enabled,
			Fires:      info.Fires,
		})
	}

	var uptime time.Duration
	if !b.started.IsZero() {
		uptime = time.Since(b.started).Truncate(time.Millisecond)
	}

	return Status{
		Session: b.session.String(),
		Ticks:   b.Clock.Now(),
		RateHz:  b.Clock.Rate(),
		Running: b.Clock.Running(),
		Uptime:  uptime.String(),
		Timers:  timers,
		USART:   b.USART.Stats(),
	}
}
