package serial

import (
	"io"

	"tickcore/config"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Loopback and mock ports (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for a USB-serial adapter
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}

// FromConfig converts the file configuration to a port configuration.
// Zero baud or timeout keep the DefaultConfig values.
func FromConfig(sc config.SerialConfig) *Config {
	cfg := DefaultConfig(sc.Device)
	if sc.Baud != 0 {
		cfg.Baud = sc.Baud
	}
	if sc.ReadTimeoutMs != 0 {
		cfg.ReadTimeout = sc.ReadTimeoutMs
	}
	return cfg
}
