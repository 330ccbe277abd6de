package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// RxEvent captures one receive check for post-mortem analysis
type RxEvent struct {
	Trigger Trigger
	OldPos  uint16 // cursor before the check
	NewPos  uint16 // write position the check ran against
	Bytes   uint16 // bytes delivered
	Clock   uint32 // system ticks at the check
	valid   bool
}

const (
	RxRingSize = 32 // Keep last 32 checks for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Receive event ring, written from whichever context drives the tracker
	rxRing        [RxRingSize]RxEvent
	rxRingHead    uint8
	rxRingEnabled bool = true

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetRxRingEnabled turns receive event capture on or off
func SetRxRingEnabled(enabled bool) {
	state := lockRxRing()
	rxRingEnabled = enabled
	unlockRxRing(state)
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer.
// It blocks; use DebugAsync from interrupt handlers.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking).
// The message is dropped if the channel is full.
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordRx stores a receive check in the ring
func RecordRx(t Trigger, oldPos, newPos, bytes int) {
	clock := GetTime()
	state := lockRxRing()
	defer unlockRxRing(state)

	if !rxRingEnabled {
		return
	}
	idx := rxRingHead
	rxRing[idx] = RxEvent{
		Trigger: t,
		OldPos:  uint16(oldPos),
		NewPos:  uint16(newPos),
		Bytes:   uint16(bytes),
		Clock:   clock,
		valid:   true,
	}
	rxRingHead = (idx + 1) % RxRingSize
}

// RxEvents returns the recorded events, oldest first.
func RxEvents() []RxEvent {
	events := make([]RxEvent, 0, RxRingSize)
	state := lockRxRing()
	defer unlockRxRing(state)

	start := rxRingHead
	for i := uint8(0); i < RxRingSize; i++ {
		evt := rxRing[(start+i)%RxRingSize]
		if evt.valid {
			events = append(events, evt)
		}
	}
	return events
}

// DumpRxRing writes the receive ring through the debug writer
func DumpRxRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[RX] === Receive Ring Dump ===")
	for _, evt := range RxEvents() {
		debugPrintln("[RX] " + evt.Trigger.String() +
			" old=" + utoa(uint32(evt.OldPos)) +
			" new=" + utoa(uint32(evt.NewPos)) +
			" bytes=" + utoa(uint32(evt.Bytes)) +
			" clock=" + utoa(evt.Clock))
	}
	debugPrintln("[RX] === End Dump ===")
}

// ClearRxRing clears the receive ring
func ClearRxRing() {
	state := lockRxRing()
	defer unlockRxRing(state)

	for i := range rxRing {
		rxRing[i] = RxEvent{}
	}
	rxRingHead = 0
}
