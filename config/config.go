// Package config holds the settings fixed at startup: tick rate, timer
// registry capacity, receive buffer size, and the host serial link.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"tickcore/core"
)

// Limits accepted by Validate
const (
	MaxTickRate     = 1000000 // one tick per microsecond
	MaxRxBufferSize = 65536
)

// Config is the startup configuration
type Config struct {
	TickRateHz   uint32       `json:"tick_rate_hz"`
	MaxTimers    int          `json:"max_timers"`
	RxBufferSize int          `json:"rx_buffer_size"`
	Serial       SerialConfig `json:"serial"`
	Debug        bool         `json:"debug"`
}

// SerialConfig describes the host serial link that feeds the receive buffer
type SerialConfig struct {
	Device        string `json:"device"`
	Baud          int    `json:"baud"`
	ReadTimeoutMs int    `json:"read_timeout_ms"`
}

// LoadConfig parses a JSON configuration and fills in defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var cfg Config

	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadConfig(data)
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	if cfg.TickRateHz == 0 {
		cfg.TickRateHz = core.DefaultTickRate
	}
	if cfg.MaxTimers == 0 {
		cfg.MaxTimers = 16
	}
	if cfg.RxBufferSize == 0 {
		cfg.RxBufferSize = 256
	}
	if cfg.Serial.Device == "" {
		cfg.Serial.Device = "/dev/ttyUSB0"
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.ReadTimeoutMs == 0 {
		cfg.Serial.ReadTimeoutMs = 100
	}
}

// Validate checks that every value can be honoured
func (c *Config) Validate() error {
	if c.TickRateHz == 0 || c.TickRateHz > MaxTickRate {
		return fmt.Errorf("tick_rate_hz %d out of range 1..%d", c.TickRateHz, MaxTickRate)
	}
	if c.MaxTimers <= 0 || c.MaxTimers > core.MaxTimerCapacity {
		return fmt.Errorf("max_timers %d out of range 1..%d", c.MaxTimers, core.MaxTimerCapacity)
	}
	if c.RxBufferSize <= 0 || c.RxBufferSize > MaxRxBufferSize {
		return fmt.Errorf("rx_buffer_size %d out of range 1..%d", c.RxBufferSize, MaxRxBufferSize)
	}
	if c.Serial.Baud < 0 {
		return fmt.Errorf("serial baud %d is negative", c.Serial.Baud)
	}
	return nil
}
