package core

// SysClockHz is the APB1 timer clock on a 72 MHz STM32F103 (APB1 /2, x2 for timers).
const SysClockHz = 72000000

// TickHz is the system tick rate produced by TIM3.
const TickHz = 1000

// TimerConfig is a basic up-counting time base: the counter clock is
// clk/(Prescaler+1) and it reloads after Period+1 counts.
type TimerConfig struct {
	Prescaler uint32
	Period    uint32
}

var (
	// Timer3Config gives a 1 kHz update interrupt (the system tick).
	Timer3Config = TimerConfig{Prescaler: 7200 - 1, Period: 10 - 1}

	// CounterConfig gives TIM2 a 10 kHz free running count wrapping each second.
	CounterConfig = TimerConfig{Prescaler: 7200 - 1, Period: 10000 - 1}
)

// TickHz returns the counter clock for a timer input clock of clk.
func (c TimerConfig) TickHz(clk uint32) uint32 {
	return clk / (c.Prescaler + 1)
}

// UpdateHz returns the update (overflow) event rate for a timer input clock of clk.
func (c TimerConfig) UpdateHz(clk uint32) uint32 {
	return c.TickHz(clk) / (c.Period + 1)
}

// Valid reports whether both fields fit the 16-bit timer registers
func (c TimerConfig) Valid() bool {
	return c.Prescaler <= 0xFFFF && c.Period <= 0xFFFF
}

// TimerDriver is one general purpose timer.
type TimerDriver interface {
	// Init programs the time base and starts the counter.
	Init(cfg TimerConfig) error
	Counter() uint16
	SetCounter(v uint16)
}

// GetTime returns the current system time in ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// Tick advances the system time by one tick. Called from the TIM3
// update interrupt.
func Tick() {
	incSystemTicks()
}

// TimerFromMS converts milliseconds to ticks
func TimerFromMS(ms uint32) uint32 {
	return ms * TickHz / 1000
}

// TimerToMS converts ticks to milliseconds
func TimerToMS(ticks uint32) uint32 {
	return ticks * 1000 / TickHz
}

// timeBefore reports whether a is before b, tolerating wraparound.
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
