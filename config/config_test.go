package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.TickRateHz != 1000 {
		t.Errorf("Expected default tick rate 1000, got %d", cfg.TickRateHz)
	}
	if cfg.MaxTimers != 16 {
		t.Errorf("Expected default 16 timers, got %d", cfg.MaxTimers)
	}
	if cfg.RxBufferSize != 256 {
		t.Errorf("Expected default rx buffer 256, got %d", cfg.RxBufferSize)
	}
	if cfg.Serial.Baud != 115200 || cfg.Serial.Device == "" {
		t.Errorf("Unexpected serial defaults: %+v", cfg.Serial)
	}
}

func TestLoadConfigValues(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"tick_rate_hz": 1000000,
		"max_timers": 5,
		"rx_buffer_size": 32,
		"serial": {"device": "/dev/ttyACM0", "baud": 9600},
		"debug": true
	}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.TickRateHz != 1000000 || cfg.MaxTimers != 5 || cfg.RxBufferSize != 32 {
		t.Errorf("Values not loaded: %+v", cfg)
	}
	if cfg.Serial.Device != "/dev/ttyACM0" || cfg.Serial.Baud != 9600 || cfg.Serial.ReadTimeoutMs != 100 {
		t.Errorf("Serial not loaded: %+v", cfg.Serial)
	}
	if !cfg.Debug {
		t.Error("Expected debug enabled")
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"bad json", `{"max_timers": }`, "parse config"},
		{"rate too high", `{"tick_rate_hz": 2000000}`, "tick_rate_hz"},
		{"negative timers", `{"max_timers": -1}`, "max_timers"},
		{"huge buffer", `{"rx_buffer_size": 100000}`, "rx_buffer_size"},
		{"negative baud", `{"serial": {"baud": -5}}`, "baud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tt.json))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickcore.json")
	if err := os.WriteFile(path, []byte(`{"max_timers": 3}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxTimers != 3 {
		t.Errorf("Expected 3 timers, got %d", cfg.MaxTimers)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestWatchReportsEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickcore.json")
	if err := os.WriteFile(path, []byte(`{"debug": false}`), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	if err := Watch(ctx, path, func(c *Config) { got <- c }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"debug": true}`), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-got:
			if c.Debug {
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for config reload")
		}
	}
}
