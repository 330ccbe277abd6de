package core

// RxDMABufferSize is the size of the circular DMA receive buffer.
const RxDMABufferSize = 20

// UARTConfig is the line configuration handed to the UART driver
type UARTConfig struct {
	BaudRate   uint32
	WordLength uint8 // data bits, 8 or 9
	StopBits   uint8 // 1 or 2
}

// DefaultUARTConfig returns 9600 baud, 8 data bits, 1 stop bit, no parity.
func DefaultUARTConfig() UARTConfig {
	return UARTConfig{
		BaudRate:   9600,
		WordLength: 8,
		StopBits:   1,
	}
}

// ByteSink is where echoed bytes go. WriteByte blocks until the byte
// has been accepted by the transmitter.
type ByteSink interface {
	WriteByte(c byte) error
}

// UARTDriver is the abstract UART interface that core code uses.
// Platform-specific implementations handle pin muxing, clocks and registers.
type UARTDriver interface {
	ByteSink

	// Configure sets up pins, clocks and line format and arms the
	// idle-line interrupt. The peripheral stays disabled.
	Configure(cfg UARTConfig) error

	// Enable turns on the transmitter, receiver and peripheral. It is
	// called once the receive DMA channel is running.
	Enable()

	// Flush waits until the transmit data register is empty
	Flush()
}

// RxDMADriver is the DMA channel feeding the receive ring.
type RxDMADriver interface {
	// Start points the channel at buf in circular mode with half-transfer
	// and transfer-complete interrupts enabled, then enables it.
	Start(buf []byte) error

	// Remaining returns the hardware count-down register: how many
	// transfers are left before the channel wraps.
	Remaining() int
}

// WritePos converts the DMA remaining count into a write index in [0, n).
// A freshly reloaded counter (remaining == n) is position 0.
func WritePos(d RxDMADriver, n int) int {
	pos := n - d.Remaining()
	if pos == n {
		return 0
	}
	return pos
}

// Global singletons used by core code.
var (
	uartDriver  UARTDriver
	rxDMADriver RxDMADriver
)

// SetUARTDriver is called by target-specific code to register its driver.
func SetUARTDriver(d UARTDriver) {
	uartDriver = d
}

// MustUART returns the configured driver or panics if missing.
func MustUART() UARTDriver {
	if uartDriver == nil {
		panic("UART driver not configured")
	}
	return uartDriver
}

// SetRxDMADriver is called by target-specific code to register its driver.
func SetRxDMADriver(d RxDMADriver) {
	rxDMADriver = d
}

// MustRxDMA returns the configured driver or panics if missing.
func MustRxDMA() RxDMADriver {
	if rxDMADriver == nil {
		panic("RX DMA driver not configured")
	}
	return rxDMADriver
}
