//go:build tinygo

package core

import "runtime/interrupt"

type irqState = interrupt.State

// disableInterrupts masks interrupts and returns the previous state
func disableInterrupts() irqState {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state irqState) {
	interrupt.Restore(state)
}

// The receive ring is written from interrupt handlers; masking them is
// enough on a single core.
func lockRxRing() irqState {
	return interrupt.Disable()
}

func unlockRxRing(state irqState) {
	interrupt.Restore(state)
}
