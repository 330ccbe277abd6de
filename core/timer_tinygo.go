//go:build tinygo

package core

import "sync/atomic"

// Written from the TIM3 interrupt, read from the main loop.
var systemTicksValue uint32

// getSystemTicks returns the current system ticks
func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicksValue)
}

// setSystemTicks sets the system ticks
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicksValue, ticks)
}

func incSystemTicks() {
	atomic.AddUint32(&systemTicksValue, 1)
}
