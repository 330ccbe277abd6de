//go:build !tinygo

package core

import "sync"

// irqState is a placeholder for the saved PRIMASK on regular Go
type irqState uintptr

// disableInterrupts is a no-op on regular Go (for testing)
func disableInterrupts() irqState {
	return 0
}

// restoreInterrupts is a no-op on regular Go (for testing)
func restoreInterrupts(irqState) {}

// Trackers on the host run on their own goroutines, so the shared receive
// ring needs a real lock there.
var rxRingMu sync.Mutex

func lockRxRing() irqState {
	rxRingMu.Lock()
	return 0
}

func unlockRxRing(irqState) {
	rxRingMu.Unlock()
}
