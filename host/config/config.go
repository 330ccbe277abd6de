package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"uartdma/host/loopback"
	"uartdma/host/serial"
	"uartdma/host/softdma"
)

// HostConfig describes a loopback run. Durations are in milliseconds.
type HostConfig struct {
	Device        string `json:"device"`
	Baud          int    `json:"baud"`
	DataBits      int    `json:"data_bits"`
	StopBits      int    `json:"stop_bits"`
	ReadTimeoutMS int    `json:"read_timeout_ms"`

	RingSize      int   `json:"ring_size"`
	IdleTimeoutMS int   `json:"idle_timeout_ms"`
	Lockstep      *bool `json:"lockstep,omitempty"`

	Count           int  `json:"count"`
	PayloadSize     int  `json:"payload_size"`
	IntervalMS      int  `json:"interval_ms"`
	EchoTimeoutMS   int  `json:"echo_timeout_ms"`
	BannerTimeoutMS int  `json:"banner_timeout_ms"`
	SkipBanner      bool `json:"skip_banner"`

	LogLevel string `json:"log_level"`
}

// LoadConfig parses a JSON configuration string and returns a HostConfig
func LoadConfig(jsonData []byte) (*HostConfig, error) {
	var config HostConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	return &config, nil
}

// LoadFile reads and parses a configuration file
func LoadFile(path string) (*HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills in missing configuration values with the firmware's settings
func applyDefaults(config *HostConfig) {
	if config.Device == "" {
		config.Device = "/dev/ttyUSB0"
	}

	// Line settings must match the board: 9600 8N1
	if config.Baud == 0 {
		config.Baud = 9600
	}
	if config.DataBits == 0 {
		config.DataBits = 8
	}
	if config.StopBits == 0 {
		config.StopBits = 1
	}
	if config.ReadTimeoutMS == 0 {
		config.ReadTimeoutMS = 100
	}

	if config.RingSize == 0 {
		config.RingSize = softdma.DefaultConfig().RingSize
	}
	if config.IdleTimeoutMS == 0 {
		config.IdleTimeoutMS = 5
	}
	if config.Lockstep == nil {
		on := true
		config.Lockstep = &on
	}

	if config.Count == 0 {
		config.Count = 100
	}
	if config.PayloadSize == 0 {
		config.PayloadSize = 16
	}
	if config.EchoTimeoutMS == 0 {
		config.EchoTimeoutMS = 2000
	}
	if config.BannerTimeoutMS == 0 {
		config.BannerTimeoutMS = 5000
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *HostConfig {
	config := &HostConfig{}
	applyDefaults(config)
	return config
}

// Serial returns the port settings
func (c *HostConfig) Serial() *serial.Config {
	return &serial.Config{
		Device:      c.Device,
		Baud:        c.Baud,
		DataBits:    c.DataBits,
		StopBits:    c.StopBits,
		ReadTimeout: ms(c.ReadTimeoutMS),
	}
}

// Loopback returns the tester settings. A serial port with a read timeout
// reports quiet periods as io.EOF, so the engine treats EOF as a timeout.
func (c *HostConfig) Loopback() loopback.Config {
	return loopback.Config{
		Count:       c.Count,
		PayloadSize: c.PayloadSize,
		Interval:    ms(c.IntervalMS),
		EchoTimeout: ms(c.EchoTimeoutMS),
		Engine: softdma.Config{
			RingSize:    c.RingSize,
			IdleTimeout: ms(c.IdleTimeoutMS),
			Lockstep:    c.Lockstep == nil || *c.Lockstep,
			TimeoutEOF:  c.ReadTimeoutMS > 0,
		},
	}
}

// BannerTimeout bounds the wait for the reset banner
func (c *HostConfig) BannerTimeout() time.Duration {
	return ms(c.BannerTimeoutMS)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
