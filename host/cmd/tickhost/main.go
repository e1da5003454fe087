// Command tickhost runs the tick clock, soft timers and a USART on a
// workstation, with a serial device standing in for the board's UART.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickcore/config"
	"tickcore/core"
	"tickcore/host/board"
	"tickcore/host/monitor"
	"tickcore/host/serial"
)

var (
	cfgPath  = flag.String("config", "", "JSON config file (optional, watched for debug changes)")
	device   = flag.String("device", "", "Serial device path (overrides config)")
	baud     = flag.Int("baud", 0, "Baud rate (overrides config)")
	tickRate = flag.Uint("rate", 0, "Tick rate in Hz (overrides config)")
	list     = flag.Bool("list", false, "List serial ports and exit")
	httpAddr = flag.String("http", "", "Serve the JSON monitor on this address, e.g. :8080")
	ledPin   = flag.String("led", "", "GPIO name of an LED to blink, e.g. GPIO17")
	debug    = flag.Bool("debug", false, "Enable debug logging")
	loopback = flag.Bool("loopback", false, "Use an in-memory loopback port instead of a device")
)

func main() {
	flag.Parse()

	if *list {
		listPorts()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	var level slog.LevelVar
	setDebug(&level, *debug || cfg.Debug)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))
	core.SetDebugWriter(func(msg string) {
		slog.Debug(msg, "src", "core")
	})
	core.InitAsyncDebug()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := board.Options{LEDPin: *ledPin}
	if *loopback {
		port := serial.NewLoopback(100 * time.Millisecond)
		opts.Port = port
		// Typed lines play the part of the remote end.
		go io.Copy(port, os.Stdin)
	}

	b, err := board.New(cfg, opts)
	if err != nil {
		slog.Error("board setup failed", "err", err)
		os.Exit(1)
	}
	slog.Info("tickhost starting", "session", b.Session(), "device", cfg.Serial.Device, "loopback", *loopback)

	if err := startDemoTimers(b); err != nil {
		slog.Error("demo timers", "err", err)
		os.Exit(1)
	}

	if *cfgPath != "" {
		go func() {
			err := config.Watch(ctx, *cfgPath, func(next *config.Config) {
				setDebug(&level, *debug || next.Debug)
				slog.Info("config reloaded", "debug", next.Debug)
			})
			if err != nil {
				slog.Warn("config watch stopped", "err", err)
			}
		}()
	}

	if *httpAddr != "" {
		srv := &http.Server{
			Addr:              *httpAddr,
			Handler:           monitor.NewRouter(b),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("monitor listening", "addr", *httpAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("monitor", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
	}

	go echoLines(ctx, b, *loopback)

	if err := b.Run(ctx); err != nil {
		var cfgErr *core.ClockConfigError
		if errors.As(err, &cfgErr) {
			// Nothing can run without a time base.
			slog.Error("tick clock failed", "rate_hz", cfgErr.RateHz, "err", err)
		} else {
			slog.Error("board stopped", "err", err)
		}
		core.DumpEvents()
		os.Exit(1)
	}

	if core.IsDebugEnabled() {
		core.DumpEvents()
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *tickRate != 0 {
		cfg.TickRateHz = uint32(*tickRate)
	}
	return cfg, cfg.Validate()
}

func setDebug(level *slog.LevelVar, on bool) {
	if on {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	core.SetDebugEnabled(on)
}

func listPorts() {
	ports, err := serial.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return
	}
	for _, p := range ports {
		fmt.Println(p)
	}
}
