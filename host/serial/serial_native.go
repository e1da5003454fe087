//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

// NativePort is a USB-serial or on-board UART opened through tarm/serial.
// Close may race with a blocked Read; reads and writes after Close fail
// instead of touching the released device.
type NativePort struct {
	port      *serial.Port
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens cfg.Device. A zero ReadTimeout makes reads block until data
// arrives, which stalls the board's receive pump on shutdown; use a timeout.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("serial: nil config")
	}
	if cfg.Device == "" {
		return nil, errors.New("serial: no device given")
	}
	if cfg.Baud <= 0 {
		return nil, fmt.Errorf("serial: invalid baud rate %d", cfg.Baud)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &NativePort{port: port}, nil
}

func (p *NativePort) Read(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, io.EOF
	}
	return p.port.Read(b)
}

func (p *NativePort) Write(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return p.port.Write(b)
}

// Close releases the device. Later calls return the first result.
func (p *NativePort) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if p.port != nil {
			p.closeErr = p.port.Close()
		}
	})
	return p.closeErr
}

// Flush discards unread input
func (p *NativePort) Flush() error {
	if p.closed.Load() {
		return io.ErrClosedPipe
	}
	return p.port.Flush()
}
