package serial

import (
	"errors"
	"io"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory loopback ports in tests
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

var (
	ErrNilConfig = errors.New("serial: nil config")
	ErrDataBits  = errors.New("serial: data bits must be 5 to 8")
	ErrStopBits  = errors.New("serial: stop bits must be 1 or 2")
)

// Config holds serial port configuration. It must match the firmware's
// UART line settings; parity is always none.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	Baud     int
	DataBits int
	StopBits int

	// ReadTimeout bounds a single Read (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultConfig returns 9600 8N1 with a 100ms read timeout
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        9600,
		DataBits:    8,
		StopBits:    1,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Validate checks the line settings
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return ErrDataBits
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return ErrStopBits
	}
	return nil
}

// CharTime returns how long one character takes on the wire
// (start bit, data bits, stop bits).
func (c *Config) CharTime() time.Duration {
	if c.Baud <= 0 {
		return 0
	}
	bits := 1 + c.DataBits + c.StopBits
	return time.Duration(bits) * time.Second / time.Duration(c.Baud)
}
